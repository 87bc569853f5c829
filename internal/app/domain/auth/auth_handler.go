package auth

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain"
	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	service Service
	cookie  middleware.VisitorCookie
}

func NewHandler(service Service, cookie middleware.VisitorCookie, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
		cookie:      cookie,
	}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Logger.Debug("Invalid registration payload", zap.Error(err))
		h.RespondError(c, fmt.Errorf("%s: %w", err.Error(), models.ErrValidation))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.RespondConflictAsBadRequest(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Token handles POST /auth/token with form fields username and password.
// Favorites of a visitor cookie sent along are merged into the account and
// the cookie is cleared.
func (h *Handler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		h.RespondError(c, fmt.Errorf("username and password are required: %w", models.ErrValidation))
		return
	}

	visitor := h.cookie.Read(c)
	if !WellFormedVisitorID(visitor) {
		visitor = ""
	}

	token, err := h.service.Login(c.Request.Context(), username, password, visitor)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	if visitor != "" {
		h.cookie.Clear(c)
	}
	c.JSON(http.StatusOK, token)
}

// Me handles GET /auth/me. RequireUser runs first.
func (h *Handler) Me(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	user, err := h.service.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
