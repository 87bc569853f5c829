package city

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain"
	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
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

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, models.ErrValidation)
	}
	return n, nil
}

// ListCities handles GET /cities?region=&skip=&limit=.
func (h *Handler) ListCities(c *gin.Context) {
	skip, err := queryInt(c, "skip")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.RespondError(c, err)
		return
	}

	filter := models.CityFilter{Region: c.Query("region"), Skip: skip, Limit: limit}
	cities, err := h.service.ListCities(c.Request.Context(), middleware.GetIdentity(c), filter)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (h *Handler) CitiesMap(c *gin.Context) {
	markers, err := h.service.CitiesMap(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, markers)
}

func (h *Handler) SearchCities(c *gin.Context) {
	cities, err := h.service.SearchCities(c.Request.Context(), middleware.GetIdentity(c), c.Query("query"))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (h *Handler) GetCity(c *gin.Context) {
	id, err := domain.ParseID(c, "id")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	detail, err := h.service.GetCity(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) RecommendedCities(c *gin.Context) {
	id, err := domain.ParseID(c, "id")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	cities, err := h.service.RecommendedCities(c.Request.Context(), middleware.GetIdentity(c), id, limit)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

// CityPOIsMap handles GET /cities/:id/map?poi_type=.
func (h *Handler) CityPOIsMap(c *gin.Context) {
	id, err := domain.ParseID(c, "id")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	poiType, err := models.ParsePOIType(c.Query("poi_type"))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	pois, err := h.service.CityPOIsMap(c.Request.Context(), middleware.GetIdentity(c), id, poiType)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pois)
}

func (h *Handler) SearchCityPOIs(c *gin.Context) {
	id, err := domain.ParseID(c, "id")
	if err != nil {
		h.RespondError(c, err)
		return
	}
	pois, err := h.service.SearchCityPOIs(c.Request.Context(), middleware.GetIdentity(c), id, c.Query("query"))
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pois)
}
