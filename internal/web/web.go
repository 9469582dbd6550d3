package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"campuscal/internal/calendar"
	"campuscal/internal/config"
	"campuscal/internal/export"
	appLog "campuscal/internal/log"
	"campuscal/internal/metrics"
	"campuscal/internal/model"
	"campuscal/internal/phrase"
	"campuscal/internal/query"
)

const (
	whenCacheSize = 256
	whenCacheTTL  = 5 * time.Minute
)

// Calendar is the part of *calendar.Service the HTTP API needs.
type Calendar interface {
	Engine() (*query.Engine, error)
	Generation() uint64
	Refresh(ctx context.Context) error
}

// Server provides the HTTP query API over the current calendar index.
type Server struct {
	cfg    *config.Config
	cal    Calendar
	router chi.Router
	now    func() time.Time

	// /api/when answers are cached per index generation; the TTL bounds how
	// stale the NotPast filter can get between refreshes.
	whenCache *lru.Cache[string, whenCacheEntry]
}

type whenCacheEntry struct {
	resp     whenResponse
	storedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cal Calendar) *Server {
	cache, err := lru.New[string, whenCacheEntry](whenCacheSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	s := &Server{
		cfg:       cfg,
		cal:       cal,
		router:    chi.NewRouter(),
		now:       time.Now,
		whenCache: cache,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="campuscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, cal Calendar) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, cal).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/calendar.ics", s.handleICS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/when", s.handleWhen)
		r.Get("/on", s.handleOn)
		r.Get("/until", s.handleUntil)
		r.Get("/upcoming", s.handleUpcoming)
		r.Post("/refresh", s.handleRefresh)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// matchDTO is a JSON-friendly view of a match.
type matchDTO struct {
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	HasTime    bool      `json:"has_time"`
	Similarity int       `json:"similarity,omitempty"`
}

func toDTOs(ms []model.Match) []matchDTO {
	out := make([]matchDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchDTO{
			Name:       m.Name,
			Date:       m.Date.Time,
			HasTime:    m.Date.HasTime,
			Similarity: m.Similarity,
		})
	}
	return out
}

type whenResponse struct {
	Event   string     `json:"event"`
	Tense   string     `json:"tense"`
	Matches []matchDTO `json:"matches"`
	Speech  string     `json:"speech"`
}

// handleWhen looks an event up by name.
//
// GET /api/when?event=homecoming&tense=past&clean=1
func (s *Server) handleWhen(w http.ResponseWriter, r *http.Request) {
	const op = "by_name"
	q := r.URL.Query()

	event := strings.TrimSpace(q.Get("event"))
	if event == "" {
		s.badRequest(w, op, "missing event")
		return
	}
	tense, err := query.ParseTense(q.Get("tense"))
	if err != nil {
		s.badRequest(w, op, err.Error())
		return
	}
	clean, err := parseBool(q.Get("clean"))
	if err != nil {
		s.badRequest(w, op, "clean must be a boolean")
		return
	}

	engine, ok := s.engine(w, op)
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("%d|%s|%s|%t", s.cal.Generation(), strings.ToLower(event), tense, clean)
	if ce, hit := s.whenCache.Get(cacheKey); hit && s.now().Sub(ce.storedAt) < whenCacheTTL {
		recordOutcome(op, len(ce.resp.Matches) > 0)
		writeJSON(w, http.StatusOK, ce.resp)
		return
	}

	matches := engine.LookupByName(event, tense, clean)
	resp := whenResponse{
		Event:   event,
		Tense:   tense.String(),
		Matches: toDTOs(matches),
		Speech:  phrase.When(event, tense, matches),
	}
	s.whenCache.Add(cacheKey, whenCacheEntry{resp: resp, storedAt: s.now()})

	recordOutcome(op, len(matches) > 0)
	writeJSON(w, http.StatusOK, resp)
}

type onResponse struct {
	Date   string `json:"date"`
	Found  bool   `json:"found"`
	Events string `json:"events,omitempty"`
	Speech string `json:"speech"`
}

// handleOn lists what happens on a day.
//
// GET /api/on?date=2020-07-04
func (s *Server) handleOn(w http.ResponseWriter, r *http.Request) {
	const op = "by_date"
	q := r.URL.Query()

	day, err := s.parseDay(q.Get("date"))
	if err != nil {
		s.badRequest(w, op, err.Error())
		return
	}
	clean, err := parseBool(q.Get("clean"))
	if err != nil {
		s.badRequest(w, op, "clean must be a boolean")
		return
	}

	engine, ok := s.engine(w, op)
	if !ok {
		return
	}

	names, found := engine.LookupByDate(day, clean)
	recordOutcome(op, found)
	writeJSON(w, http.StatusOK, onResponse{
		Date:   day.Format(time.DateOnly),
		Found:  found,
		Events: names,
		Speech: phrase.On(day, names, found),
	})
}

type untilResponse struct {
	Event  string    `json:"event"`
	Found  bool      `json:"found"`
	Match  *matchDTO `json:"match,omitempty"`
	Days   int       `json:"days"`
	Speech string    `json:"speech"`
}

// handleUntil counts days to the best upcoming match.
//
// GET /api/until?event=spring+break
func (s *Server) handleUntil(w http.ResponseWriter, r *http.Request) {
	const op = "days_until"
	q := r.URL.Query()

	event := strings.TrimSpace(q.Get("event"))
	if event == "" {
		s.badRequest(w, op, "missing event")
		return
	}
	clean, err := parseBool(q.Get("clean"))
	if err != nil {
		s.badRequest(w, op, "clean must be a boolean")
		return
	}

	engine, ok := s.engine(w, op)
	if !ok {
		return
	}

	cd, found := engine.DaysUntil(event, clean)
	resp := untilResponse{
		Event:  event,
		Found:  found,
		Speech: phrase.Until(event, cd, found),
	}
	if found {
		dto := toDTOs([]model.Match{cd.Match})[0]
		resp.Match = &dto
		resp.Days = cd.Days
	}

	recordOutcome(op, found)
	writeJSON(w, http.StatusOK, resp)
}

type upcomingResponse struct {
	Days   int        `json:"days"`
	Events []matchDTO `json:"events"`
	Speech string     `json:"speech"`
}

// handleUpcoming lists events in the next N days.
//
// GET /api/upcoming?days=7
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	const op = "window"
	q := r.URL.Query()

	days, err := strconv.Atoi(q.Get("days"))
	if err != nil || days < 1 || days > s.cfg.MaxWindowDays {
		s.badRequest(w, op, phrase.WindowOutOfRange(s.cfg.MaxWindowDays))
		return
	}
	clean, err := parseBool(q.Get("clean"))
	if err != nil {
		s.badRequest(w, op, "clean must be a boolean")
		return
	}

	engine, ok := s.engine(w, op)
	if !ok {
		return
	}

	events, err := engine.EventsInWindow(days, clean)
	if err != nil {
		s.badRequest(w, op, phrase.WindowOutOfRange(s.cfg.MaxWindowDays))
		return
	}

	recordOutcome(op, len(events) > 0)
	writeJSON(w, http.StatusOK, upcomingResponse{
		Days:   days,
		Events: toDTOs(events),
		Speech: phrase.Upcoming(days, events),
	})
}

type refreshResponse struct {
	Generation uint64 `json:"generation"`
	Keys       int    `json:"keys"`
	Skipped    int    `json:"skipped"`
}

// handleRefresh rebuilds the index immediately.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cal.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	engine, ok := s.engine(w, "refresh")
	if !ok {
		return
	}
	idx := engine.Index()
	writeJSON(w, http.StatusOK, refreshResponse{
		Generation: s.cal.Generation(),
		Keys:       idx.Len(),
		Skipped:    len(idx.Skipped()),
	})
}

// handleICS serves the current index as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	engine, ok := s.engine(w, "export")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.ICS(engine.Index(), s.cfg.Location(), export.DefaultProdID)))
}

// engine writes a 503 and returns false while no index has been built.
func (s *Server) engine(w http.ResponseWriter, op string) (*query.Engine, bool) {
	e, err := s.cal.Engine()
	if err != nil {
		if errors.Is(err, calendar.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "calendar not loaded yet")
		} else {
			appLog.Error("api: engine unavailable", err, "operation", op)
			writeError(w, http.StatusInternalServerError, "calendar unavailable")
		}
		return nil, false
	}
	return e, true
}

func (s *Server) badRequest(w http.ResponseWriter, op, msg string) {
	metrics.RecordQuery(op, metrics.OutcomeInvalid)
	writeError(w, http.StatusBadRequest, msg)
}

// parseDay accepts YYYY-MM-DD in the calendar's zone, or a full RFC 3339
// timestamp.
func (s *Server) parseDay(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("missing date")
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, s.cfg.Location()); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or RFC 3339", v)
	}
	return t.In(s.cfg.Location()), nil
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func recordOutcome(op string, found bool) {
	if found {
		metrics.RecordQuery(op, metrics.OutcomeFound)
		return
	}
	metrics.RecordQuery(op, metrics.OutcomeNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
