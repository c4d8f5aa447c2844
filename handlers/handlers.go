// Package handlers contains the gin HTTP handlers for the mobile API.
// Handlers bind requests, call the service layer and attach failures to the
// gin context; the error-handler middleware owns status codes and bodies.
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// handleError hands a failure to the error-handler middleware.
func handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// queryTime parses an RFC 3339 query parameter; the zero time means unset.
func queryTime(c *gin.Context, name string) time.Time {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
