package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/test", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler_NotFound(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(errors.NotFound("Device", "device-1"))
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errors.NotFoundError), resp.Type)
	assert.Contains(t, resp.Details, "device-1")
}

func TestErrorHandler_ValidationIncludesDetail(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(errors.ValidationFailed("Invalid registration", "deviceId is required"))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errors.ValidationError), resp.Type)
	assert.Equal(t, "deviceId is required", resp.Details)
}

func TestErrorHandler_VersionConflictCarriesServerVersion(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(errors.VersionConflict("item-1", 3, 5))
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errors.ConflictError), resp.Type)
	assert.Contains(t, resp.Details, "server has version 5")
}

func TestErrorHandler_DatabaseErrorHidesDetail(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(errors.NewDatabaseError(assert.AnError))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errors.DatabaseError), resp.Type)
	assert.NotContains(t, resp.Details, assert.AnError.Error())
}

func TestErrorHandler_UnknownErrorIs500(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, string(errors.ServerError), resp.Type)
}

func TestErrorHandler_NoErrorPassesThrough(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentity_MissingHeaderRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-User-ID", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}
