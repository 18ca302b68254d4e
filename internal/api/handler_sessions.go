package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/store"
)

// ListStudioSessions handles GET /api/studios/:studio_id/sessions.
// Optional query parameters: from, to (RFC3339) and include_cancelled.
func (h *Handler) ListStudioSessions(c *gin.Context) {
	studioID, ok := h.uuidParam(c, "studio_id")
	if !ok {
		return
	}

	var filter store.SessionFilter
	var err error
	if filter.From, err = optionalTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp format. Use RFC3339."})
		return
	}
	if filter.To, err = optionalTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp format. Use RFC3339."})
		return
	}
	if raw := c.Query("include_cancelled"); raw != "" {
		if filter.IncludeCancelled, err = strconv.ParseBool(raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'include_cancelled' value"})
			return
		}
	}

	sessions, err := h.store.ListStudioSessions(c.Request.Context(), studioID, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// sessionDetailResponse is a session with its studio and live seat snapshot.
type sessionDetailResponse struct {
	store.SessionSummary
	StudioName string `json:"studio_name"`
}

// GetSession handles GET /api/sessions/:id. The session and its confirmed
// count are independent reads and go through the execution-mode selector.
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	results, err := h.service.RunBatchedReads(c.Request.Context(),
		func(ctx context.Context) (any, error) { return h.store.GetSession(ctx, id) },
		func(ctx context.Context) (any, error) { return h.store.CountConfirmed(ctx, id) },
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	session := results[0].(*model.ClassSession)
	confirmed := results[1].(int64)

	resp := sessionDetailResponse{SessionSummary: store.Summarize(*session, confirmed)}
	if session.Studio != nil {
		resp.StudioName = session.Studio.Name
	}
	c.JSON(http.StatusOK, resp)
}

type swapTeacherRequest struct {
	TeacherID   string `json:"teacher_id" binding:"required,uuid"`
	StudioID    string `json:"studio_id" binding:"required,uuid"`
	IfTeacherID string `json:"if_teacher_id" binding:"required,uuid"`
}

// SwapTeacher handles POST /api/sessions/:id/swap.
func (h *Handler) SwapTeacher(c *gin.Context) {
	sessionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req swapTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.service.SwapTeacher(c.Request.Context(), sessionID,
		uuid.MustParse(req.TeacherID), uuid.MustParse(req.StudioID), uuid.MustParse(req.IfTeacherID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.summarize(c.Request.Context(), session))
}

// UpdateSession handles PATCH /api/sessions/:id. Absent fields are left
// unchanged and "room": null clears the room.
func (h *Handler) UpdateSession(c *gin.Context) {
	sessionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var patch booking.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.service.UpdateSession(c.Request.Context(), sessionID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.summarize(c.Request.Context(), session))
}

// summarize attaches an advisory confirmed count to a committed session.
// A failed count is logged and reported as zero; the write already succeeded.
func (h *Handler) summarize(ctx context.Context, session *model.ClassSession) store.SessionSummary {
	confirmed, err := h.store.CountConfirmed(ctx, session.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "Counting confirmed bookings failed", "session_id", session.ID, "error", err)
	}
	return store.Summarize(*session, confirmed)
}

func optionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
