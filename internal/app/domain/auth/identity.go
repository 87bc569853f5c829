package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

const maxVisitorIDLength = 128

// UserLookup is the part of the repository the resolver needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID int64) (*models.UserAuth, error)
}

// IdentityResolver turns request credentials into a models.Identity.
type IdentityResolver struct {
	logger *zap.Logger
	jwt    *JWTService
	users  UserLookup
}

func NewIdentityResolver(jwtService *JWTService, users UserLookup, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{logger: logger, jwt: jwtService, users: users}
}

// Resolve never fails. A bearer token for an active user wins over the visitor
// cookie, which is then kept as the pending visitor to merge. Bad tokens fall
// through to the cookie, and a missing or malformed cookie means anonymous.
func (r *IdentityResolver) Resolve(ctx context.Context, authorization, visitorCookie string) models.Identity {
	visitor := ""
	if WellFormedVisitorID(visitorCookie) {
		visitor = visitorCookie
	}

	if token, ok := bearerToken(authorization); ok {
		if id, ok := r.resolveUser(ctx, token); ok {
			id.PendingVisitorID = visitor
			return id
		}
	}

	if visitor != "" {
		return models.VisitorIdentity(visitor)
	}
	return models.Anonymous()
}

func (r *IdentityResolver) resolveUser(ctx context.Context, token string) (models.Identity, bool) {
	claims, err := r.jwt.ValidateToken(token)
	if err != nil {
		r.logger.Debug("Ignoring invalid bearer token", zap.Error(err))
		return models.Identity{}, false
	}
	user, err := r.users.GetUserByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		r.logger.Debug("Token subject is not an active user", zap.Int64("user_id", claims.UserID), zap.Error(err))
		return models.Identity{}, false
	}
	return models.UserIdentity(user.ID), true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WellFormedVisitorID reports whether a visitor cookie value is usable as an
// owner key: 1 to 128 bytes of printable ASCII without spaces.
func WellFormedVisitorID(v string) bool {
	if v == "" || len(v) > maxVisitorIDLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return false
		}
	}
	return true
}
