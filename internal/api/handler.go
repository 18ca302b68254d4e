package api

import (
	"log/slog"

	"github.com/SherClockHolmes/webpush-go"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/schedule"
	"studio-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	service  *booking.Service
	detector *schedule.Detector
	webpush  *webpush.Options
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc *booking.Service, webpushOptions *webpush.Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		service:  svc,
		detector: schedule.NewDetector(),
		webpush:  webpushOptions,
		logger:   logger,
	}
}
