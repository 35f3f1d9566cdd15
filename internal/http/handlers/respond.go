package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doonfrs/trinacrud/internal/crud"
	"github.com/doonfrs/trinacrud/internal/logging"
	"github.com/doonfrs/trinacrud/internal/validation"
)

// respondError maps service errors onto HTTP outcomes. Authorization
// failures deliberately render as 404 so the response shape never reveals
// whether a model or record exists.
func respondError(c *gin.Context, err error) {
	var verr *validation.Errors
	switch {
	case errors.Is(err, crud.ErrNotFound) || errors.Is(err, crud.ErrNotAuthorized):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	default:
		logging.WithError(err).Errorf("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
