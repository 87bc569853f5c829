package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// StatusFor maps a domain error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// RespondError writes err as JSON. Unexpected errors are logged and their
// details kept out of the response.
func (h *BaseHandler) RespondError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	h.respond(c, status, code, err)
}

// RespondConflictAsBadRequest is RespondError for endpoints where a duplicate
// is a client input problem rather than a concurrent update.
func (h *BaseHandler) RespondConflictAsBadRequest(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if code == "conflict" {
		status = http.StatusBadRequest
	}
	h.respond(c, status, code, err)
}

func (h *BaseHandler) respond(c *gin.Context, status int, code string, err error) {
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		msg = "internal server error"
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg, Code: code})
}

// ParseID reads a positive int64 path parameter.
func ParseID(c *gin.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", param, c.Param(param), models.ErrValidation)
	}
	return id, nil
}
