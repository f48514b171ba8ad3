package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetapp/cmd/middleware"
)

func newAuthedEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth())
	r.GET("/probe", handler)
	return r
}

func TestAuth_ValidHeader(t *testing.T) {
	var gotID int
	r := newAuthedEngine(func(c *gin.Context) {
		id, ok := middleware.ActorID(c)
		require.True(t, ok)
		gotID = id
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-ID", "42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, gotID)
}

func TestAuth_RejectsBadHeader(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"missing", ""},
		{"not a number", "abc"},
		{"non-positive", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			r := newAuthedEngine(func(c *gin.Context) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tc.value != "" {
				req.Header.Set("X-User-ID", tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.False(t, called)
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("caller's id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("X-Request-ID", "fixed-id")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
	})
}
