package api

import (
	"log/slog"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/mw"
	"studio-booking-backend/internal/store"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, svc *booking.Service, webpushOptions *webpush.Options, opts RouterOptions) *gin.Engine {
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(10)
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	handler := NewHandler(s, svc, webpushOptions, opts.Logger)

	rateLimiter := mw.RateLimiter(opts.RateLimit, opts.Burst)

	// Listings only. Seat counts in them are advisory anyway.
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.InvalidateOnWrite(cacheStore))
	{
		api.GET("/studios/:studio_id/sessions", caching, handler.ListStudioSessions)

		api.GET("/sessions/:id", handler.GetSession)
		api.PATCH("/sessions/:id", handler.UpdateSession)
		api.POST("/sessions/:id/bookings", handler.CreateBooking)
		api.POST("/sessions/:id/swap", handler.SwapTeacher)

		api.DELETE("/bookings/:id", handler.CancelBooking)

		api.GET("/teachers/:id/conflicts", handler.PreviewConflicts)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
