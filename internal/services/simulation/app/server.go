// Package server hosts the simulation HTTP/WebSocket process: the control
// API that starts and steers replay sessions, and the watch stream that
// fans tally and projection events out to dashboard subscribers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/platform/errors/i18n"
	"github.com/urnalabs/apura/internal/platform/id"
	"github.com/urnalabs/apura/internal/platform/timeouts"
	"github.com/urnalabs/apura/internal/services/simulation/domain"
	"github.com/urnalabs/apura/internal/services/simulation/storage"
	"github.com/urnalabs/apura/internal/services/simulation/storage/sqlite"
)

const (
	// defaultTickInterval is how often a running session consumes a batch.
	defaultTickInterval = 500 * time.Millisecond
	// defaultBaseReplayDuration is the target wall-clock length of a full
	// replay at speed 1.
	defaultBaseReplayDuration = 5 * time.Minute
	// defaultSessionTTL is how long terminal sessions stay queryable
	// before the janitor evicts them.
	defaultSessionTTL = 10 * time.Minute
)

// Config defines the inputs for the simulation service process.
type Config struct {
	HTTPAddr           string
	StoragePath        string
	TickInterval       time.Duration
	BaseReplayDuration time.Duration
	SessionTTL         time.Duration
	ViewerGrants       ViewerGrantConfig
	ReadHeaderTimeout  time.Duration
	ShutdownTimeout    time.Duration
}

// Server hosts the simulation HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
	stop            context.CancelFunc
	janitorDone     chan struct{}
}

// Stores bundles the persistence dependencies the handler reads. Both sides
// are usually the same sqlite store; tests substitute fakes.
type Stores struct {
	Elections storage.ElectionStore
	Votes     storage.VoteSource
}

// HandlerConfig assembles simulation routes without the full server
// lifecycle, for tests and embedding.
type HandlerConfig struct {
	Stores             Stores
	TickInterval       time.Duration
	BaseReplayDuration time.Duration
	SessionTTL         time.Duration
	ViewerGrants       ViewerGrantConfig
	Now                func() time.Time
	NewID              func() (string, error)
}

type handler struct {
	elections storage.ElectionStore
	votes     storage.VoteSource
	registry  *sessionRegistry
	hub       *streamHub
	grants    ViewerGrantConfig

	tickInterval time.Duration
	baseDuration time.Duration
	now          func() time.Time
	newID        func() (string, error)

	// baseCtx bounds runner goroutines to the server lifetime, not the
	// originating HTTP request.
	baseCtx context.Context

	mux *http.ServeMux
}

// NewHandler creates simulation routes backed by the given stores. Runner
// goroutines stop when ctx ends.
func NewHandler(ctx context.Context, config HandlerConfig) (http.Handler, error) {
	h, err := newHandler(ctx, config)
	if err != nil {
		return nil, err
	}
	return h.mux, nil
}

func newHandler(ctx context.Context, config HandlerConfig) (*handler, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if config.Stores.Elections == nil {
		return nil, errors.New("election store is required")
	}
	if config.Stores.Votes == nil {
		return nil, errors.New("vote source is required")
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}
	if config.BaseReplayDuration <= 0 {
		config.BaseReplayDuration = defaultBaseReplayDuration
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.NewID == nil {
		config.NewID = id.NewID
	}

	h := &handler{
		elections:    config.Stores.Elections,
		votes:        config.Stores.Votes,
		registry:     newSessionRegistry(config.SessionTTL, config.Now),
		hub:          newStreamHub(),
		grants:       config.ViewerGrants,
		tickInterval: config.TickInterval,
		baseDuration: config.BaseReplayDuration,
		now:          config.Now,
		newID:        config.NewID,
		baseCtx:      ctx,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /v1/elections", h.handleListElections)
	mux.HandleFunc("POST /v1/simulations", h.handleStartSimulation)
	mux.HandleFunc("GET /v1/simulations/{id}", h.handleGetSimulation)
	mux.HandleFunc("POST /v1/simulations/{id}/pause", h.handlePauseSimulation)
	mux.HandleFunc("POST /v1/simulations/{id}/resume", h.handleResumeSimulation)
	mux.HandleFunc("POST /v1/simulations/{id}/cancel", h.handleCancelSimulation)
	mux.HandleFunc("GET /v1/simulations/{id}/watch", h.handleWatchSimulation)
	h.mux = mux

	return h, nil
}

// NewServer builds a configured simulation server over its sqlite store.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	storagePath := strings.TrimSpace(config.StoragePath)
	if storagePath == "" {
		return nil, errors.New("storage path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}

	store, err := sqlite.Open(storagePath)
	if err != nil {
		return nil, fmt.Errorf("open election store: %w", err)
	}

	if config.ViewerGrants.Enabled() {
		log.Printf("simulation server verifying viewer grants from issuer %q", config.ViewerGrants.Issuer)
	} else {
		log.Printf("simulation server running with viewer grant checks disabled")
	}

	ctx, stop := context.WithCancel(context.Background())
	h, err := newHandler(ctx, HandlerConfig{
		Stores:             Stores{Elections: store, Votes: store},
		TickInterval:       config.TickInterval,
		BaseReplayDuration: config.BaseReplayDuration,
		SessionTTL:         config.SessionTTL,
		ViewerGrants:       config.ViewerGrants,
	})
	if err != nil {
		stop()
		store.Close()
		return nil, err
	}

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		h.registry.runJanitor(ctx, h.hub, janitorInterval(config.SessionTTL))
	}()

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           h.mux,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
		stop:            stop,
		janitorDone:     janitorDone,
	}, nil
}

// Run creates and serves a simulation server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init simulation server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve simulation: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("simulation server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("simulation server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources: session runners, the janitor, and the
// store.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.stop != nil {
		s.stop()
	}
	if s.janitorDone != nil {
		<-s.janitorDone
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close election store: %v", err)
		}
	}
}

func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

type startSimulationRequest struct {
	Year  int      `json:"year"`
	Speed *float64 `json:"speed"`
}

type resumeSimulationRequest struct {
	Speed float64 `json:"speed"`
}

type sessionEnvelope struct {
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	ID           string          `json:"id"`
	Year         int             `json:"year"`
	Speed        float64         `json:"speed"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
	StartedAt    string          `json:"started_at,omitempty"`
	CompletedAt  string          `json:"completed_at,omitempty"`
	CancelledAt  string          `json:"cancelled_at,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	Coverage     coveragePayload `json:"coverage"`
	Skipped      int64           `json:"skipped"`
}

type coveragePayload struct {
	PercentageCounted float64 `json:"percentage_counted"`
	CountedVotes      int64   `json:"counted_votes"`
	TotalVotes        int64   `json:"total_votes"`
	RegionsCounted    int     `json:"regions_counted"`
	TotalRegions      int     `json:"total_regions"`
}

type electionsEnvelope struct {
	Elections []electionPayload `json:"elections"`
}

type electionPayload struct {
	Year         int    `json:"year"`
	Name         string `json:"name"`
	TotalRegions int    `json:"total_regions"`
	TotalVotes   int64  `json:"total_votes"`
	Seats        int    `json:"seats,omitempty"`
}

func sessionPayloadFromView(view sessionView) sessionPayload {
	session := view.Session
	payload := sessionPayload{
		ID:           session.ID,
		Year:         session.Year,
		Speed:        session.Speed,
		Status:       domain.SessionStatusLabel(session.Status),
		CreatedAt:    session.CreatedAt.UTC().Format(time.RFC3339),
		CancelReason: session.CancelReason,
		Coverage: coveragePayload{
			PercentageCounted: 100 * view.Coverage.VotePct(),
			CountedVotes:      view.Coverage.VotesCounted,
			TotalVotes:        view.Coverage.TotalVotes,
			RegionsCounted:    view.Coverage.RegionsCounted,
			TotalRegions:      view.Coverage.TotalRegions,
		},
		Skipped: view.Skipped,
	}
	if session.StartedAt != nil {
		payload.StartedAt = session.StartedAt.UTC().Format(time.RFC3339)
	}
	if session.CompletedAt != nil {
		payload.CompletedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}
	if session.CancelledAt != nil {
		payload.CancelledAt = session.CancelledAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (h *handler) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var payload startSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeInvalidRequest, "decode start request", err))
		return
	}
	// An omitted speed replays at the real count's pace; an explicit
	// zero is rejected like any other out-of-range value.
	speed := 1.0
	if payload.Speed != nil {
		speed = *payload.Speed
	}

	view, err := h.startSession(r.Context(), payload.Year, speed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionEnvelope{Session: sessionPayloadFromView(view)})
}

func (h *handler) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	runner, err := h.registry.get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sessionPayloadFromView(runner.describe())})
}

func (h *handler) handlePauseSimulation(w http.ResponseWriter, r *http.Request) {
	h.handleControl(w, r, controlPause, 0)
}

func (h *handler) handleResumeSimulation(w http.ResponseWriter, r *http.Request) {
	var payload resumeSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, apperrors.Wrap(apperrors.CodeInvalidRequest, "decode resume request", err))
		return
	}
	h.handleControl(w, r, controlResume, payload.Speed)
}

func (h *handler) handleCancelSimulation(w http.ResponseWriter, r *http.Request) {
	h.handleControl(w, r, controlCancel, 0)
}

func (h *handler) handleControl(w http.ResponseWriter, r *http.Request, kind controlKind, speed float64) {
	runner, err := h.registry.get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := runner.control(r.Context(), kind, speed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sessionPayloadFromView(view)})
}

func (h *handler) handleListElections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.StoreQuery)
	defer cancel()

	records, err := h.elections.ListElections(ctx)
	if err != nil {
		writeError(w, r, fmt.Errorf("list elections: %w", err))
		return
	}

	payload := electionsEnvelope{Elections: make([]electionPayload, 0, len(records))}
	for _, record := range records {
		payload.Elections = append(payload.Elections, electionPayload{
			Year:         record.Year,
			Name:         record.Name,
			TotalRegions: record.TotalRegions,
			TotalVotes:   record.TotalVotes,
			Seats:        record.Seats,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

// startSession validates the request, loads the year's dataset, and launches
// the replay goroutine.
func (h *handler) startSession(ctx context.Context, year int, speed float64) (sessionView, error) {
	session, err := domain.CreateSession(domain.CreateSessionInput{Year: year, Speed: speed}, h.now, h.newID)
	if err != nil {
		return sessionView{}, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeouts.StoreQuery)
	defer cancel()

	record, err := h.elections.GetElection(loadCtx, year)
	if err != nil {
		if errors.Is(err, storage.ErrNoDataForYear) {
			return sessionView{}, apperrors.WrapWithMetadata(
				apperrors.CodeSimulationInvalidYear,
				"no election data for requested year",
				map[string]string{"Year": strconv.Itoa(year)},
				err,
			)
		}
		return sessionView{}, fmt.Errorf("load election %d: %w", year, err)
	}
	parties, err := h.elections.ListParties(loadCtx, year)
	if err != nil {
		return sessionView{}, fmt.Errorf("load parties for %d: %w", year, err)
	}
	candidates, err := h.elections.ListCandidates(loadCtx, year)
	if err != nil {
		return sessionView{}, fmt.Errorf("load candidates for %d: %w", year, err)
	}
	shareRecords, err := h.elections.ListHistoricalShares(loadCtx, year)
	if err != nil {
		return sessionView{}, fmt.Errorf("load historical shares for %d: %w", year, err)
	}
	shares := make(map[int]float64, len(shareRecords))
	for _, share := range shareRecords {
		shares[share.PartyCode] = share.Share
	}

	iterator, err := h.votes.Votes(loadCtx, year)
	if err != nil {
		return sessionView{}, fmt.Errorf("open votes for %d: %w", year, err)
	}

	session, err = domain.TransitionSessionStatus(session, domain.SessionStatusRunning, h.now)
	if err != nil {
		_ = iterator.Close()
		return sessionView{}, err
	}

	election := domain.Election{
		Year:         record.Year,
		Name:         record.Name,
		TotalRegions: record.TotalRegions,
		TotalVotes:   record.TotalVotes,
		Seats:        record.Seats,
	}
	runner := newSessionRunner(
		session,
		election,
		parties,
		candidates,
		shares,
		iterator,
		h.hub.room(session.ID),
		h.tickInterval,
		h.baseDuration,
		h.now,
	)
	h.registry.add(runner)
	go runner.run(h.baseCtx)

	log.Printf("simulation %s started for year %d at speed %v", session.ID, year, session.Speed)
	return runner.describe(), nil
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError renders a localized error envelope with the status the domain
// code maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		log.Printf("request %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	catalog := i18n.GetCatalog(resolveLocale(r))
	writeJSON(w, code.HTTPStatus(), errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: catalog.Format(string(code), apperrors.MetadataOf(err)),
	}})
}
