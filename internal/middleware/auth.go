// Package middleware provides the gin middleware used by the HTTP layer.
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const (
	userKey = "user"
	// maxTokenBodyBytes bounds how much of a JSON body is buffered to look for a token.
	maxTokenBodyBytes = 64 << 10
)

// RequireAuth resolves the bearer token to an active user and stores it in
// the context. Requests without a valid session are rejected.
func RequireAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authService.GetCurrentUser(c.Request.Context(), extractToken(c))
		if err != nil {
			status, message := authFailure(err)
			log.Warnw("request rejected by auth gate", "path", c.Request.URL.Path, "status", status, "reason", message)
			c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString != "" {
			if user, err := authService.GetCurrentUser(c.Request.Context(), tokenString); err == nil {
				c.Set(userKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by RequireAuth or OptionalAuth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func authFailure(err error) (int, string) {
	var svcErr *service.Error
	message := "Invalid or expired token"
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}
	switch {
	case errors.Is(err, service.ErrConfiguration):
		return http.StatusInternalServerError, message
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, message
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, message
	default:
		log.Error("auth gate lookup failed", err)
		return http.StatusInternalServerError, "Internal server error"
	}
}

// extractToken reads the token from the Authorization header, then the
// "token" query parameter, then a "token" form or JSON body field.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		const bearerPrefix = "Bearer "
		if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(header[len(bearerPrefix):])
		}
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return ""
	}

	switch c.ContentType() {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return c.PostForm("token")
	case "application/json":
		return tokenFromJSONBody(c)
	}
	return ""
}

// tokenFromJSONBody peeks at the body and restores it for the handler.
func tokenFromJSONBody(c *gin.Context) string {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTokenBodyBytes+1))
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
	if len(body) > maxTokenBodyBytes {
		return ""
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Token
}
