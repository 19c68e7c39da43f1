package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"RSVPBot/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewResponse struct {
	SessionID   string          `json:"sessionId"`
	Step        int             `json:"step"`
	Page        string          `json:"page"`
	Valid       bool            `json:"valid"`
	Submitting  bool            `json:"submitting"`
	SubmitError string          `json:"submitError"`
	State       model.FormState `json:"state"`
}

func newTestServer(sink *recordingSink, perSecond float64) http.Handler {
	api := NewWebAPI(zerolog.Nop(), sink)
	return NewWebServer(zerolog.Nop(), api, []string{"*"}, perSecond)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) viewResponse {
	t.Helper()
	var v viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/rsvp/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "intro", v.Page)
	return v.SessionID
}

func soloToPreferencesOverHTTP(t *testing.T, h http.Handler) string {
	t.Helper()
	id := createSession(t, h)
	base := "/api/rsvp/sessions/" + id
	steps := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/next", ""},
		{http.MethodPut, "/fields/travelType", `{"value":"solo"}`},
		{http.MethodPost, "/next", ""},
		{http.MethodPut, "/fields/name", `{"value":"Asha"}`},
		{http.MethodPut, "/fields/phone", `{"value":"9876543210"}`},
		{http.MethodPost, "/next", ""},
		{http.MethodPost, "/events/reception/toggle", ""},
		{http.MethodPost, "/next", ""},
		{http.MethodPut, "/fields/travelMode", `{"value":"personal"}`},
		{http.MethodPost, "/next", ""},
		{http.MethodPut, "/fields/accommodation", `{"value":"No, own arrangements"}`},
		{http.MethodPut, "/fields/hardDrinkCount", `{"value":"5+"}`},
	}
	for _, s := range steps {
		rec := do(t, h, s.method, base+s.path, s.body)
		require.Equal(t, http.StatusOK, rec.Code, "%s %s: %s", s.method, s.path, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, base, "")
	require.Equal(t, "preferences", decodeView(t, rec).Page)
	return id
}

func TestWebAPISoloSubmit(t *testing.T) {
	sink := &recordingSink{ack: model.SubmissionAck{Result: model.AckSuccess}}
	h := newTestServer(sink, 1000)
	id := soloToPreferencesOverHTTP(t, h)

	rec := do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", "")

	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "success", v.Page)
	assert.Equal(t, 6, v.Step)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "5+", sink.calls[0].HardDrinkCount)
	assert.True(t, sink.calls[0].Events.Reception)

	rec = do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/back", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebAPISubmitFailure(t *testing.T) {
	sink := &recordingSink{ack: model.SubmissionAck{Result: "error"}}
	h := newTestServer(sink, 1000)
	id := soloToPreferencesOverHTTP(t, h)

	rec := do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "preferences", v.Page)
	assert.Equal(t, model.MsgSubmitFailed, v.SubmitError)
	assert.False(t, v.Submitting)
}

func TestWebAPIErrors(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1000)
	id := createSession(t, h)
	base := "/api/rsvp/sessions/" + id

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown session", http.MethodGet, "/api/rsvp/sessions/9b2f0a4e-7a57-4a8e-9a55-1b1f3c8b2a10", "", http.StatusNotFound},
		{"malformed session id", http.MethodPost, "/api/rsvp/sessions/abc/next", "", http.StatusNotFound},
		{"unknown field", http.MethodPut, base + "/fields/nickname", `{"value":"x"}`, http.StatusBadRequest},
		{"bad value", http.MethodPut, base + "/fields/travelType", `{"value":"family"}`, http.StatusBadRequest},
		{"missing value", http.MethodPut, base + "/fields/name", `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, base + "/fields/name", `{`, http.StatusBadRequest},
		{"guest out of range", http.MethodPut, base + "/guests/4", `{"value":"Ravi"}`, http.StatusBadRequest},
		{"guest index not a number", http.MethodPut, base + "/guests/first", `{"value":"Ravi"}`, http.StatusBadRequest},
		{"unknown event", http.MethodPost, base + "/events/sangeet/toggle", "", http.StatusBadRequest},
		{"submit too early", http.MethodPost, base + "/submit", "", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWebAPINumericAndBooleanValues(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1000)
	id := createSession(t, h)
	base := "/api/rsvp/sessions/" + id

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/next", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/fields/travelType", `{"value":"group"}`).Code)
	rec := do(t, h, http.MethodPut, base+"/fields/guestCount", `{"value":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPut, base+"/fields/needPickup", `{"value":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v := decodeView(t, rec)
	assert.Equal(t, 3, v.State.GuestCount)
	assert.Len(t, v.State.GuestNames, 3)
	assert.True(t, v.State.NeedPickup)
}

func TestWebAPINextOnInvalidPage(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1000)
	id := createSession(t, h)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/next", "").Code)
	rec := do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/next", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebAPIDeleteSession(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1000)
	id := createSession(t, h)

	rec := do(t, h, http.MethodDelete, "/api/rsvp/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/rsvp/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebAPIRateLimit(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestWebAPICORS(t *testing.T) {
	h := newTestServer(&recordingSink{}, 1000)
	req := httptest.NewRequest(http.MethodOptions, "/api/rsvp/sessions", nil)
	req.Header.Set("Origin", "https://invite.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedAPI(sink *recordingSink) (*WebAPI, *fakeClock, http.Handler) {
	clock := newFakeClock()
	api := NewWebAPI(zerolog.Nop(), sink)
	api.now = clock.Now
	return api, clock, NewWebServer(zerolog.Nop(), api, []string{"*"}, 1000)
}

func (a *WebAPI) sessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func TestClientLimiterForgetsIdleClients(t *testing.T) {
	clock := newFakeClock()
	cl := newClientLimiter(1, 1)
	cl.now = clock.Now

	cl.get("192.0.2.1")
	cl.get("192.0.2.2")
	clock.Advance(6 * time.Minute)
	cl.get("192.0.2.1")
	clock.Advance(6 * time.Minute)
	cl.get("192.0.2.3")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	assert.Len(t, cl.visitors, 2)
	assert.Contains(t, cl.visitors, "192.0.2.1")
	assert.Contains(t, cl.visitors, "192.0.2.3")
	assert.NotContains(t, cl.visitors, "192.0.2.2")
}

func TestClientLimiterBoundedAcrossManyClients(t *testing.T) {
	clock := newFakeClock()
	cl := newClientLimiter(1, 1)
	cl.now = clock.Now

	for i := 0; i < 500; i++ {
		cl.get("10.0.0." + strconv.Itoa(i))
	}
	clock.Advance(visitorIdleTimeout + time.Second)
	cl.get("10.0.1.1")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	assert.Len(t, cl.visitors, 1)
}

func TestWebAPIExpiresIdleSessions(t *testing.T) {
	api, clock, h := newClockedAPI(&recordingSink{})
	id := createSession(t, h)

	clock.Advance(DefaultSessionIdleTimeout - time.Minute)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/rsvp/sessions/"+id, "").Code)

	clock.Advance(DefaultSessionIdleTimeout - time.Minute)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/rsvp/sessions/"+id, "").Code, "activity keeps a session alive")

	clock.Advance(DefaultSessionIdleTimeout + time.Second)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/rsvp/sessions/"+id, "").Code)
	assert.Equal(t, 0, api.sessionCount())
}

func TestWebAPIDropsFinishedSessionsAfterGrace(t *testing.T) {
	api, clock, h := newClockedAPI(&recordingSink{ack: model.SubmissionAck{Result: model.AckSuccess}})
	id := soloToPreferencesOverHTTP(t, h)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/rsvp/sessions/"+id+"/submit", "").Code)

	clock.Advance(DefaultFinishedSessionGrace + time.Second)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/rsvp/sessions/"+id, "").Code)
	assert.Equal(t, 0, api.sessionCount())
}

func TestWebAPISessionCap(t *testing.T) {
	api, clock, h := newClockedAPI(&recordingSink{})
	api.maxSessions = 2

	createSession(t, h)
	createSession(t, h)
	rec := do(t, h, http.MethodPost, "/api/rsvp/sessions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	clock.Advance(DefaultSessionIdleTimeout + time.Second)
	createSession(t, h)
	assert.Equal(t, 1, api.sessionCount())
}

func TestWebAPIJanitor(t *testing.T) {
	api, clock, h := newClockedAPI(&recordingSink{})
	createSession(t, h)
	createSession(t, h)
	clock.Advance(DefaultSessionIdleTimeout + time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go api.Janitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return api.sessionCount() == 0 }, time.Second, 5*time.Millisecond)
}
