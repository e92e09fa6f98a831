package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// DenialStatus maps a denial reason onto the HTTP status it is served with.
func DenialStatus(reason apperrors.DenialReason) int {
	switch reason {
	case apperrors.DenialForbidden, apperrors.DenialNotOwner, apperrors.DenialForbiddenTransition:
		return http.StatusForbidden
	case apperrors.DenialAmountOutOfRange:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// RespondError writes err as a denial, an AppError, or a generic 500.
func RespondError(c *gin.Context, err error) {
	if d, ok := apperrors.AsDenial(err); ok {
		c.AbortWithStatusJSON(DenialStatus(d.Reason), NewDeniedResponse(string(d.Reason)))
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode()
		if status >= http.StatusInternalServerError {
			logServerError(c, err)
			c.AbortWithStatusJSON(status, NewErrorResponse("internal server error"))
			return
		}
		c.AbortWithStatusJSON(status, NewErrorResponse(appErr.Message))
		return
	}

	logServerError(c, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

func logServerError(c *gin.Context, err error) {
	_ = c.Error(err)
	log.Error().
		Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
}
