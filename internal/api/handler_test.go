package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/lock"
	"studio-booking-backend/internal/schedule"
	"studio-booking-backend/internal/store"
	"studio-booking-backend/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRouter(t *testing.T) (*gin.Engine, *testutil.Fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewSQLite(t)
	f := testutil.Seed(t, db)
	svc := booking.NewService(db, booking.Options{Logger: quietLogger()})

	r := NewRouter(store.NewGormStore(db), svc, &webpush.Options{VAPIDPublicKey: "test-public-key"}, RouterOptions{
		RateLimit: rate.Inf,
		Burst:     1000,
		Logger:    quietLogger(),
	})
	return r, f
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestBookingEndpoints(t *testing.T) {
	r, f := setupRouter(t)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 1)
	a := f.AddClient(t, "A")
	b := f.AddClient(t, "B")
	path := fmt.Sprintf("/api/sessions/%s/bookings", session.ID)

	w := doJSON(t, r, http.MethodPost, path, gin.H{"client_id": a.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "confirmed", created["status"])
	bookingID := created["id"].(string)

	w = doJSON(t, r, http.MethodPost, path, gin.H{"client_id": b.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", decode(t, w)["kind"])

	w = doJSON(t, r, http.MethodPost, path, gin.H{"client_id": a.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_BOOKED", decode(t, w)["kind"])

	w = doJSON(t, r, http.MethodDelete, "/api/bookings/"+bookingID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", decode(t, w)["status"])

	w = doJSON(t, r, http.MethodPost, path, gin.H{"client_id": b.ID})
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, int64(1), f.ConfirmedCount(t, session.ID))
}

func TestBookingEndpoints_BadInput(t *testing.T) {
	r, f := setupRouter(t)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 1)
	client := f.AddClient(t, "A")

	testCases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{
			name:       "missing body",
			method:     http.MethodPost,
			path:       fmt.Sprintf("/api/sessions/%s/bookings", session.ID),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "client id is not a uuid",
			method:     http.MethodPost,
			path:       fmt.Sprintf("/api/sessions/%s/bookings", session.ID),
			body:       gin.H{"client_id": "42"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "session id is not a uuid",
			method:     http.MethodPost,
			path:       "/api/sessions/42/bookings",
			body:       gin.H{"client_id": client.ID},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown session",
			method:     http.MethodPost,
			path:       fmt.Sprintf("/api/sessions/%s/bookings", uuid.New()),
			body:       gin.H{"client_id": client.ID},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown booking",
			method:     http.MethodDelete,
			path:       fmt.Sprintf("/api/bookings/%s", uuid.New()),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestSwapEndpoint(t *testing.T) {
	r, f := setupRouter(t)
	bob := f.AddTeacher(t, "Bob")
	cara := f.AddTeacher(t, "Cara")
	f.AddSession(t, f.Studio, bob, "Bob's Flow", testutil.At(10, 30), testutil.At(11, 30), 10)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 10)
	path := fmt.Sprintf("/api/sessions/%s/swap", session.ID)

	t.Run("conflict", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, path, gin.H{
			"teacher_id":    bob.ID,
			"studio_id":     f.Studio.ID,
			"if_teacher_id": f.Teacher.ID,
		})
		require.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w)
		assert.Equal(t, "SCHEDULE_CONFLICT", body["kind"])
		assert.Contains(t, body["error"], "Bob's Flow")
		conflict := body["conflict"].(map[string]any)
		assert.Equal(t, "Bob's Flow", conflict["session"].(map[string]any)["name"])
	})

	t.Run("stale precondition", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, path, gin.H{
			"teacher_id":    cara.ID,
			"studio_id":     f.Studio.ID,
			"if_teacher_id": bob.ID,
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Equal(t, "CONTENDED", decode(t, w)["kind"])
	})

	t.Run("success", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, path, gin.H{
			"teacher_id":    cara.ID,
			"studio_id":     f.Studio.ID,
			"if_teacher_id": f.Teacher.ID,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, cara.ID.String(), decode(t, w)["teacher_id"])
	})

	t.Run("repeat from the same read is contended", func(t *testing.T) {
		dana := f.AddTeacher(t, "Dana")
		w := doJSON(t, r, http.MethodPost, path, gin.H{
			"teacher_id":    dana.ID,
			"studio_id":     f.Studio.ID,
			"if_teacher_id": f.Teacher.ID,
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "CONTENDED", decode(t, w)["kind"])
	})

	for name, body := range map[string]gin.H{
		"missing studio":           {"teacher_id": cara.ID, "if_teacher_id": f.Teacher.ID},
		"missing current teacher":  {"teacher_id": cara.ID, "studio_id": f.Studio.ID},
		"current teacher not uuid": {"teacher_id": cara.ID, "studio_id": f.Studio.ID, "if_teacher_id": "7"},
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
		})
	}
}

func TestUpdateSessionEndpoint(t *testing.T) {
	r, f := setupRouter(t)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 10)
	path := fmt.Sprintf("/api/sessions/%s", session.ID)

	w := doJSON(t, r, http.MethodPatch, path, `{"room":"Blue","capacity":12}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Blue", body["room"])
	assert.Equal(t, float64(12), body["capacity"])
	assert.Equal(t, "Flow", body["name"])

	w = doJSON(t, r, http.MethodPatch, path, `{"room":null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode(t, w)["room"])

	w = doJSON(t, r, http.MethodPatch, path, `{"name":null}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID", decode(t, w)["kind"])

	w = doJSON(t, r, http.MethodPatch, path, `{"capacity":"many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPatch, path, `{"ends_at":"2025-03-03T09:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionReadEndpoints(t *testing.T) {
	r, f := setupRouter(t)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 2)
	client := f.AddClient(t, "A")

	t.Run("detail", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/sessions/"+session.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "Riverside", body["studio_name"])
		assert.Equal(t, "Ana", body["teacher_name"])
		assert.Equal(t, float64(2), body["seats_left"])

		w = doJSON(t, r, http.MethodGet, "/api/sessions/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("listing is cached until a write", func(t *testing.T) {
		listPath := fmt.Sprintf("/api/studios/%s/sessions", f.Studio.ID)

		w := doJSON(t, r, http.MethodGet, listPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

		w = doJSON(t, r, http.MethodGet, listPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/sessions/%s/bookings", session.ID), gin.H{"client_id": client.ID})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(t, r, http.MethodGet, listPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

		var sessions []store.SessionSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1)
		assert.Equal(t, int64(1), sessions[0].SeatsLeft)
	})

	t.Run("bad listing filter", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/studios/%s/sessions?from=yesterday", f.Studio.ID), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPreviewConflictsEndpoint(t *testing.T) {
	r, f := setupRouter(t)
	f.AddUnavailability(t, f.Teacher, testutil.At(12, 0), testutil.At(14, 0), "travel")

	preview := func(start, end string) *httptest.ResponseRecorder {
		q := url.Values{}
		q.Set("studio_id", f.Studio.ID.String())
		q.Set("starts_at", start)
		q.Set("ends_at", end)
		return doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/teachers/%s/conflicts?%s", f.Teacher.ID, q.Encode()), nil)
	}

	w := preview("2025-03-03T13:00:00Z", "2025-03-03T15:00:00Z")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "BLOCKED_TIME", body["kind"])
	assert.Equal(t, true, body["conflict"])
	assert.Contains(t, body["message"], "travel")

	w = preview("2025-03-03T14:00:00Z", "2025-03-03T15:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NONE", decode(t, w)["kind"])

	w = preview("2025-03-03T15:00:00Z", "2025-03-03T14:00:00Z")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = preview("3pm", "2025-03-03T14:00:00Z")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionEndpoints(t *testing.T) {
	r, f := setupRouter(t)
	session := f.AddSession(t, f.Studio, f.Teacher, "Flow", testutil.At(10, 0), testutil.At(11, 0), 2)
	endpoint := "https://push.example/sub/1"

	w := doJSON(t, r, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = doJSON(t, r, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint":            endpoint,
		"p256dh":              "key",
		"auth":                "auth",
		"subscribed_sessions": []string{session.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"subscribed_sessions":[%q]}`, session.ID), w.Body.String())

	w = doJSON(t, r, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())

	gin.SetMode(gin.TestMode)
	bare := gin.New()
	bare.GET("/k", NewHandler(nil, nil, nil, quietLogger()).GetVAPIDPublicKey)
	w = doJSON(t, bare, http.MethodGet, "/k", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, quietLogger())

	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "capacity", err: fmt.Errorf("x: %w", booking.ErrCapacityExceeded), wantStatus: http.StatusConflict, wantKind: "CAPACITY_EXCEEDED"},
		{name: "conflict", err: &booking.ConflictError{Result: schedule.ConflictResult{Kind: schedule.ConflictBlockedTime, Blocked: &schedule.BlockedConflict{}}}, wantStatus: http.StatusConflict, wantKind: "BLOCKED_TIME"},
		{name: "not found", err: fmt.Errorf("x: %w", lock.ErrNotFound), wantStatus: http.StatusNotFound, wantKind: "NOT_FOUND"},
		{name: "contended", err: fmt.Errorf("x: %w", lock.ErrContended), wantStatus: http.StatusServiceUnavailable, wantKind: "CONTENDED"},
		{name: "invalid", err: fmt.Errorf("x: %w", booking.ErrInvalidPatch), wantStatus: http.StatusBadRequest, wantKind: "INVALID"},
		{name: "infra", err: errors.New("pq: relation does not exist"), wantStatus: http.StatusInternalServerError, wantKind: "INFRA_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

			h.writeError(c, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, tc.wantKind, body["kind"])
			if tc.wantKind == "INFRA_ERROR" {
				assert.Equal(t, "internal error", body["error"], "infrastructure detail must not leak")
			}
		})
	}
}
