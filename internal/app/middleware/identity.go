package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

const identityKey = "identity"

// IdentityResolver computes the caller identity from the raw credentials.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization, visitorCookie string) models.Identity
}

// VisitorCookie describes the anonymous visitor cookie.
type VisitorCookie struct {
	Name   string
	MaxAge int // seconds
	Secure bool
}

func (v VisitorCookie) Read(c *gin.Context) string {
	value, err := c.Cookie(v.Name)
	if err != nil {
		return ""
	}
	return value
}

func (v VisitorCookie) Set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(v.Name, token, v.MaxAge, "/", "", v.Secure, true)
}

func (v VisitorCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(v.Name, "", -1, "/", "", v.Secure, true)
}

// IdentityMiddleware resolves the identity once per request.
func IdentityMiddleware(resolver IdentityResolver, cookie VisitorCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"), cookie.Read(c))
		SetIdentity(c, identity)
		c.Next()
	}
}

// RequireUser rejects requests that are not authenticated as a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetIdentity(c).IsUser() {
			abortUnauthenticated(c)
			return
		}
		c.Next()
	}
}

func SetIdentity(c *gin.Context, identity models.Identity) {
	c.Set(identityKey, identity)
}

// GetIdentity returns the resolved identity, anonymous when none was set.
func GetIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Anonymous()
}
