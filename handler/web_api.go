package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"RSVPBot/model"
	"RSVPBot/wizard"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const apiPrefix = "/api/rsvp"

const (
	// DefaultSessionIdleTimeout drops sessions nobody has touched for this long
	DefaultSessionIdleTimeout = 30 * time.Minute
	// DefaultFinishedSessionGrace keeps a submitted session readable for a short while
	DefaultFinishedSessionGrace = 5 * time.Minute
	DefaultMaxSessions          = 10000

	visitorIdleTimeout = 10 * time.Minute
	sweepInterval      = time.Minute
)

var errTooManySessions = errors.New("too many open sessions, try again later")

type webSession struct {
	controller *wizard.Controller
	lastSeen   time.Time
}

// WebAPI exposes wizard sessions to a browser front end as JSON
type WebAPI struct {
	l        zerolog.Logger
	sink     wizard.Sink
	mu       sync.Mutex
	sessions map[uuid.UUID]*webSession

	idleTimeout   time.Duration
	finishedGrace time.Duration
	maxSessions   int
	now           func() time.Time
}

func NewWebAPI(l zerolog.Logger, sink wizard.Sink) *WebAPI {
	return &WebAPI{
		l:             l,
		sink:          sink,
		sessions:      make(map[uuid.UUID]*webSession),
		idleTimeout:   DefaultSessionIdleTimeout,
		finishedGrace: DefaultFinishedSessionGrace,
		maxSessions:   DefaultMaxSessions,
		now:           time.Now,
	}
}

type valueRequest struct {
	Value json.RawMessage `json:"value"`
}

// Routes registers the session endpoints on router
func (a *WebAPI) Routes(router *httprouter.Router) {
	router.GET("/health", health)
	router.POST(apiPrefix+"/sessions", a.createSession)
	router.GET(apiPrefix+"/sessions/:id", a.withSession(a.getSession))
	router.DELETE(apiPrefix+"/sessions/:id", a.deleteSession)
	router.PUT(apiPrefix+"/sessions/:id/fields/:field", a.withSession(a.setField))
	router.PUT(apiPrefix+"/sessions/:id/guests/:index", a.withSession(a.setGuestName))
	router.POST(apiPrefix+"/sessions/:id/events/:event/toggle", a.withSession(a.toggleEvent))
	router.POST(apiPrefix+"/sessions/:id/next", a.withSession(a.next))
	router.POST(apiPrefix+"/sessions/:id/back", a.withSession(a.back))
	router.POST(apiPrefix+"/sessions/:id/submit", a.withSession(a.submit))
}

// NewWebServer wraps the API routes with CORS and per-client rate limiting
func NewWebServer(l zerolog.Logger, api *WebAPI, allowedOrigins []string, perSecond float64) http.Handler {
	router := httprouter.New()
	api.Routes(router)

	limiter := newClientLimiter(rate.Limit(perSecond), int(perSecond)+1)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return logRequests(l, limiter.middleware(corsHandler))
}

type sessionHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *wizard.Controller)

func (a *WebAPI) withSession(next sessionHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		c, err := a.lookup(ps.ByName("id"))
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		next(w, r, ps, c)
	}
}

func (a *WebAPI) lookup(raw string) (*wizard.Controller, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrSessionNotFound, raw)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok || a.expired(s, a.now()) {
		delete(a.sessions, id)
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	s.lastSeen = a.now()
	return s.controller, nil
}

// expired reports whether s has been idle too long; a finished session only gets the grace period
func (a *WebAPI) expired(s *webSession, now time.Time) bool {
	idle := now.Sub(s.lastSeen)
	if s.controller.Done() {
		return idle > a.finishedGrace
	}
	return idle > a.idleTimeout
}

// sweep drops expired sessions; the caller holds a.mu
func (a *WebAPI) sweep(now time.Time) {
	for id, s := range a.sessions {
		if a.expired(s, now) {
			delete(a.sessions, id)
		}
	}
}

func (a *WebAPI) createSession(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	now := a.now()
	a.mu.Lock()
	if len(a.sessions) >= a.maxSessions {
		a.sweep(now)
	}
	if len(a.sessions) >= a.maxSessions {
		a.mu.Unlock()
		a.l.Warn().Int("sessions", a.maxSessions).Msg("Session limit reached.")
		respondWithError(w, http.StatusServiceUnavailable, errTooManySessions.Error())
		return
	}
	c := wizard.NewController(a.l, a.sink)
	a.sessions[c.ID()] = &webSession{controller: c, lastSeen: now}
	a.mu.Unlock()
	respondWithJSON(w, http.StatusCreated, c.View())
}

// Janitor sweeps expired sessions every interval until ctx is done
func (a *WebAPI) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			a.sweep(a.now())
			a.mu.Unlock()
		}
	}
}

func (a *WebAPI) getSession(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, c *wizard.Controller) {
	respondWithJSON(w, http.StatusOK, c.View())
}

func (a *WebAPI) deleteSession(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	c, err := a.lookup(ps.ByName("id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	a.mu.Lock()
	delete(a.sessions, c.ID())
	a.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (a *WebAPI) setField(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *wizard.Controller) {
	value, err := decodeValue(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.respond(w, c, c.SetField(model.Field(ps.ByName("field")), value))
}

func (a *WebAPI) setGuestName(w http.ResponseWriter, r *http.Request, ps httprouter.Params, c *wizard.Controller) {
	index, err := strconv.Atoi(ps.ByName("index"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "guest index must be a number")
		return
	}
	value, err := decodeValue(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.respond(w, c, c.SetGuestName(index, value))
}

func (a *WebAPI) toggleEvent(w http.ResponseWriter, _ *http.Request, ps httprouter.Params, c *wizard.Controller) {
	a.respond(w, c, c.ToggleEvent(model.EventKey(ps.ByName("event"))))
}

func (a *WebAPI) next(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, c *wizard.Controller) {
	a.respond(w, c, c.Next())
}

func (a *WebAPI) back(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, c *wizard.Controller) {
	a.respond(w, c, c.Back())
}

func (a *WebAPI) submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params, c *wizard.Controller) {
	a.respond(w, c, c.Submit(r.Context()))
}

// respond writes the session view, or the error with the status it maps to
func (a *WebAPI) respond(w http.ResponseWriter, c *wizard.Controller, err error) {
	if err == nil {
		respondWithJSON(w, http.StatusOK, c.View())
		return
	}
	status := statusFor(err)
	if status == http.StatusBadGateway {
		respondWithJSON(w, status, c.View())
		return
	}
	respondWithError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownField), errors.Is(err, model.ErrInvalidValue), errors.Is(err, model.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSubmissionRejected), errors.Is(err, model.ErrSinkUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrStepInvalid), errors.Is(err, model.ErrSubmitRequired),
		errors.Is(err, model.ErrSubmissionInProgress), errors.Is(err, model.ErrAlreadySubmitted),
		errors.Is(err, model.ErrTopologyLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeValue reads {"value": ...}; strings are unquoted, numbers and booleans kept as written
func decodeValue(r *http.Request) (string, error) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Value) == 0 {
		return "", errors.New("value is required")
	}
	var s string
	if err := json.Unmarshal(req.Value, &s); err == nil {
		return s, nil
	}
	return string(req.Value), nil
}

func health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "200")
}

func respondWithError(w http.ResponseWriter, code int, msg string) {
	respondWithJSON(w, code, map[string]string{"error": msg})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address. Clients quiet for
// visitorIdleTimeout are forgotten.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:    limit,
		burst:    burst,
		visitors: make(map[string]*visitor),
		idle:     visitorIdleTimeout,
		now:      time.Now,
	}
}

func (cl *clientLimiter) get(client string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := cl.now()
	if now.Sub(cl.lastSweep) >= sweepInterval {
		for addr, v := range cl.visitors {
			if now.Sub(v.lastSeen) > cl.idle {
				delete(cl.visitors, addr)
			}
		}
		cl.lastSweep = now
	}
	v, ok := cl.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			client = r.RemoteAddr
		}
		if !cl.get(client).Allow() {
			respondWithError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(l zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("Handled request.")
	})
}
