package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mysbind/userhub/internal/handler/middleware"
	"mysbind/userhub/internal/service"
	"mysbind/userhub/pkg/response"
)

var ErrNoUserKey = errors.New("user key not found in context")

func getUserKeyFromContext(c *gin.Context) (string, error) {
	key := c.GetString(middleware.ContextKeyUserKey)
	if key == "" {
		return "", ErrNoUserKey
	}
	return key, nil
}

// writeServiceError maps service sentinels to responses. overrides replaces
// the default status for specific errors.
func writeServiceError(c *gin.Context, err error, overrides map[error]int) {
	for target, status := range overrides {
		if errors.Is(err, target) {
			response.Error(c, status, err.Error())
			return
		}
	}
	switch {
	case errors.Is(err, service.ErrUidInvalid),
		errors.Is(err, service.ErrGameUnsupported),
		errors.Is(err, service.ErrCookieInvalid):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUidNotFound),
		errors.Is(err, service.ErrCookieNotBound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUidAlreadyBound),
		errors.Is(err, service.ErrUidCredentialOwned):
		response.Conflict(c, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}
