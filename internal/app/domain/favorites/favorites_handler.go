package favorites

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain"
	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	service Service
	cookie  middleware.VisitorCookie
	newID   func() string
}

func NewHandler(service Service, cookie middleware.VisitorCookie, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
		cookie:      cookie,
		newID:       uuid.NewString,
	}
}

// mergePending folds a visitor cookie still sent by an authenticated user
// into the account and clears the cookie.
func (h *Handler) mergePending(c *gin.Context, identity models.Identity) error {
	if !identity.IsUser() || identity.PendingVisitorID == "" {
		return nil
	}
	if _, err := h.service.MergeVisitor(c.Request.Context(), identity.PendingVisitorID, identity.UserID); err != nil {
		return err
	}
	h.cookie.Clear(c)
	identity.PendingVisitorID = ""
	middleware.SetIdentity(c, identity)
	return nil
}

// Toggle handles POST /favorites/{city,poi}/:id. The first anonymous toggle
// issues a visitor id and sets its cookie.
func (h *Handler) Toggle(itemType models.ItemType) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, err := domain.ParseID(c, "id")
		if err != nil {
			h.RespondError(c, err)
			return
		}

		identity := middleware.GetIdentity(c)
		if identity.PendingVisitorID != "" {
			// a missing item must not merge the visitor or drop its cookie
			if err := h.service.EnsureItem(c.Request.Context(), itemID, itemType); err != nil {
				h.RespondError(c, err)
				return
			}
		}
		if err := h.mergePending(c, identity); err != nil {
			h.RespondError(c, err)
			return
		}
		minted := false
		if identity.IsAnonymous() {
			identity = models.VisitorIdentity(h.newID())
			minted = true
		}

		isFavorite, err := h.service.Toggle(c.Request.Context(), identity, itemID, itemType)
		if err != nil {
			h.RespondError(c, err)
			return
		}

		resp := models.ToggleFavoriteResponse{IsFavorite: isFavorite}
		if identity.IsVisitor() {
			resp.VisitorID = identity.VisitorID
		}
		if minted {
			h.cookie.Set(c, identity.VisitorID)
			middleware.SetIdentity(c, identity)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// List handles GET /favorites/ and GET /itinerary/favorites.
func (h *Handler) List(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if err := h.mergePending(c, identity); err != nil {
		h.RespondError(c, err)
		return
	}

	cities, err := h.service.Favorites(c.Request.Context(), identity)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}
