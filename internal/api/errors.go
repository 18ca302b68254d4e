package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"studio-booking-backend/internal/booking"
)

// retryAfterSeconds is sent with 503 responses for contended operations.
const retryAfterSeconds = "1"

// writeError maps an orchestrator or store error to its HTTP response.
// Infrastructure failures are logged and answered with a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found", "kind": booking.KindNotFound})
		return
	}

	kind := booking.Outcome(err)
	switch kind {
	case booking.KindCapacityExceeded:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "session is full", "kind": kind})
	case booking.KindAlreadyBooked:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "client is already booked into this session", "kind": kind})
	case booking.KindScheduleConflict, booking.KindBlockedTime:
		var conflict *booking.ConflictError
		errors.As(err, &conflict)
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":    conflict.Result.Message(),
			"kind":     kind,
			"conflict": conflict.Result,
		})
	case booking.KindNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found", "kind": kind})
	case booking.KindContended:
		c.Header("Retry-After", retryAfterSeconds)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "resource is busy, retry shortly", "kind": kind})
	case booking.KindInvalid:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": kind})
	default:
		h.logger.ErrorContext(c.Request.Context(), "Request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": booking.KindInfra})
	}
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.DebugContext(c.Request.Context(), "Rejected request", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func (h *Handler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
