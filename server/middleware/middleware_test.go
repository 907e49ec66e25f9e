package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string       { return e.msg }
func (e *statusError) StatusCode() int     { return e.code }
func (e *statusError) UserMessage() string { return e.msg }
func (e *statusError) Unwrap() error       { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestGinRequestIDMiddleware(t *testing.T) {
	r := newRouter(GinRequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, GetRequestIDFromGin(c), GetRequestID(c.Request.Context()))
		c.String(http.StatusOK, GetRequestIDFromGin(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))
}

func TestGinErrorMiddleware(t *testing.T) {
	r := newRouter(GinRequestIDMiddleware(), GinErrorMiddleware(testLogger()))
	r.GET("/typed", func(c *gin.Context) {
		c.Error(&statusError{code: http.StatusNotFound, msg: "record not found"})
	})
	r.GET("/plain", func(c *gin.Context) {
		c.Error(errors.New("database exploded"))
	})

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/typed", http.StatusNotFound, "record not found"},
		{"/plain", http.StatusInternalServerError, "Внутренняя ошибка сервера"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestGinRecoveryMiddleware(t *testing.T) {
	r := newRouter(GinRecoveryMiddleware(testLogger()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGinRateLimitMiddleware(t *testing.T) {
	r := newRouter(GinRateLimitMiddleware(0.001, 2))
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	unlimited := newRouter(GinRateLimitMiddleware(0, 0))
	unlimited.GET("/free", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for range 5 {
		w := httptest.NewRecorder()
		unlimited.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/free", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestGinLoggerMiddleware(t *testing.T) {
	r := newRouter(GinLoggerMiddleware(testLogger()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
