// Package handler contains the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"doubtiq-go/internal/middleware"
	"doubtiq-go/internal/model"
	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/llm"
	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto a status code and a caller-safe
// message. Unclassified errors become a 500; their detail is only returned
// in debug mode.
func respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	body := gin.H{"code": status, "message": message}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
		if gin.Mode() == gin.DebugMode {
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func statusFor(err error) (int, string) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, "Internal server error"
	}
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrExpired):
		return http.StatusBadRequest, svcErr.Message
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, svcErr.Message
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, svcErr.Message
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, svcErr.Message
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, svcErr.Message
	case errors.Is(err, service.ErrConfiguration):
		if errors.Is(err, llm.ErrNotConfigured) || errors.Is(err, service.ErrDisabled) {
			return http.StatusServiceUnavailable, svcErr.Message
		}
		return http.StatusInternalServerError, svcErr.Message
	default:
		return http.StatusInternalServerError, svcErr.Message
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message})
}

// mustUser returns the user set by the auth gate. Routes using it are always
// mounted behind RequireAuth.
func mustUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Unauthorized"})
	}
	return user, ok
}

// idParam parses a numeric path parameter. Malformed ids are reported as
// notFoundMessage since no such record can exist.
func idParam(c *gin.Context, name, notFoundMessage string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": notFoundMessage})
		return 0, false
	}
	return uint(id), true
}
