package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createBookingRequest struct {
	ClientID string `json:"client_id" binding:"required,uuid"`
}

// CreateBooking handles POST /api/sessions/:id/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	sessionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), sessionID, uuid.MustParse(req.ClientID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         b.ID,
		"session_id": b.SessionID,
		"client_id":  b.ClientID,
		"status":     b.Status,
		"created_at": b.CreatedAt,
	})
}

// CancelBooking handles DELETE /api/bookings/:id.
func (h *Handler) CancelBooking(c *gin.Context) {
	bookingID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), bookingID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           b.ID,
		"session_id":   b.SessionID,
		"status":       b.Status,
		"cancelled_at": b.CancelledAt,
	})
}
