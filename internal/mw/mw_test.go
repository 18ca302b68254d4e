package mw

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:4242"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.5), 2))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)

	w := serve(r, http.MethodGet, "/ping")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
}

func TestIPRateLimiter_ReusesLimiterPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	a := l.GetLimiter("198.51.100.1")
	assert.Same(t, a, l.GetLimiter("198.51.100.1"))
	assert.NotSame(t, a, l.GetLimiter("198.51.100.2"))
}

func TestCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.New(time.Minute, time.Minute)

	var calls atomic.Int32
	r := gin.New()
	r.Use(InvalidateOnWrite(store))
	r.GET("/sessions", Cache(store, time.Minute), func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"calls": calls.Load()})
	})
	r.GET("/missing", Cache(store, time.Minute), func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	r.POST("/bookings", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/rejected", func(c *gin.Context) { c.Status(http.StatusConflict) })

	w := serve(r, http.MethodGet, "/sessions")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = serve(r, http.MethodGet, "/sessions")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	serve(r, http.MethodPost, "/rejected")
	w = serve(r, http.MethodGet, "/sessions")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"), "failed writes keep the cache")

	serve(r, http.MethodPost, "/bookings")
	w = serve(r, http.MethodGet, "/sessions")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())

	serve(r, http.MethodGet, "/missing")
	serve(r, http.MethodGet, "/missing")
	assert.Equal(t, int32(4), calls.Load(), "error responses are not cached")
}
