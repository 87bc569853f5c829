package poi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain"
	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
)

type Handler struct {
	*domain.BaseHandler
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
	}
}

// GetPOI handles GET /pois/:id.
func (h *Handler) GetPOI(c *gin.Context) {
	id, err := domain.ParseID(c, "id")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	detail, err := h.service.GetPOI(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
