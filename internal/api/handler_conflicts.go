package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studio-booking-backend/internal/schedule"
)

type conflictPreviewQuery struct {
	StudioID         string `form:"studio_id" binding:"required,uuid"`
	StartsAt         string `form:"starts_at" binding:"required"`
	EndsAt           string `form:"ends_at" binding:"required"`
	ExcludeSessionID string `form:"exclude_session_id" binding:"omitempty,uuid"`
}

// PreviewConflicts handles GET /api/teachers/:id/conflicts.
//
// The answer is read without any lock and can be stale by the time a swap is
// submitted; only the swap itself is authoritative.
func (h *Handler) PreviewConflicts(c *gin.Context) {
	teacherID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var q conflictPreviewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	start, errStart := optionalTime(q.StartsAt)
	end, errEnd := optionalTime(q.EndsAt)
	if err := errors.Join(errStart, errEnd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp format. Use RFC3339."})
		return
	}
	if end.Before(start) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ends_at must not be before starts_at"})
		return
	}

	var exclude *uuid.UUID
	if q.ExcludeSessionID != "" {
		id := uuid.MustParse(q.ExcludeSessionID)
		exclude = &id
	}

	res, err := h.detector.CheckAssignmentConflict(c.Request.Context(), h.store.DB(),
		teacherID, uuid.MustParse(q.StudioID), schedule.Window{Start: start, End: end}, exclude)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":     res.Kind,
		"conflict": res.HasConflict(),
		"message":  res.Message(),
		"session":  res.Session,
		"blocked":  res.Blocked,
	})
}
