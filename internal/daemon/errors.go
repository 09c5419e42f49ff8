package daemon

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidpipe/internal/api"
	"vidpipe/internal/services"
	"vidpipe/internal/storage"
)

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	abortWithError(c, statusForError(err), err)
}

func abortWithError(c *gin.Context, status int, err error) {
	body := api.ErrorResponse{Error: err.Error(), Details: api.ValidationMessages(err)}
	if kind := services.Kind(err); kind != "internal" {
		body.Kind = kind
	}
	if rid, ok := services.RequestIDFromContext(c.Request.Context()); ok {
		body.RequestID = rid
	}
	c.AbortWithStatusJSON(status, body)
}
