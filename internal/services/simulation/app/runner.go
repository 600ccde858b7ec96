package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/urnalabs/apura/internal/services/simulation/domain"
	"github.com/urnalabs/apura/internal/services/simulation/storage"
)

const shutdownCancelReason = "server shutting down"

type controlKind int

const (
	controlPause controlKind = iota + 1
	controlResume
	controlCancel
)

// controlRequest is one pause/resume/cancel command forwarded to a session's
// run loop. Replies carry the post-transition session view or the domain
// error the transition rules produced.
type controlRequest struct {
	kind controlKind
	// speed applies to resume only; 0 keeps the current speed.
	speed float64
	reply chan controlResult
}

type controlResult struct {
	view sessionView
	err  error
}

// sessionView is the read-side snapshot of a running session, safe to hand
// to HTTP handlers while the run loop keeps mutating its own state.
type sessionView struct {
	Session  domain.Session
	Coverage domain.CoverageState
	Skipped  int64
}

// sessionRunner replays one election year as a live count. Its run loop is
// the sole goroutine touching the aggregator, trend tracker, and session
// state; handlers interact through the control channel and the view
// snapshot.
type sessionRunner struct {
	room     *sessionRoom
	controls chan controlRequest
	done     chan struct{}

	tickInterval time.Duration
	baseDuration time.Duration
	now          func() time.Time

	election domain.Election
	shares   map[int]float64
	iterator storage.VoteIterator

	session    domain.Session
	aggregator *domain.Aggregator
	engine     domain.Engine
	trends     *domain.TrendTracker
	batchSize  int
	startedAt  time.Time
	pausedAt   time.Time
	pausedFor  time.Duration
	ticker     *time.Ticker

	viewMu sync.Mutex
	view   sessionView
}

// newSessionRunner assembles a runner for a session already transitioned to
// running. The caller launches run in its own goroutine.
func newSessionRunner(
	session domain.Session,
	election domain.Election,
	parties []domain.Party,
	candidates []domain.Candidate,
	shares map[int]float64,
	iterator storage.VoteIterator,
	room *sessionRoom,
	tickInterval time.Duration,
	baseDuration time.Duration,
	now func() time.Time,
) *sessionRunner {
	engine := domain.NewEngine()
	runner := &sessionRunner{
		room:         room,
		controls:     make(chan controlRequest),
		done:         make(chan struct{}),
		tickInterval: tickInterval,
		baseDuration: baseDuration,
		now:          now,
		election:     election,
		shares:       shares,
		iterator:     iterator,
		session:      session,
		aggregator:   domain.NewAggregator(election, parties, candidates),
		engine:       engine,
		trends:       domain.NewTrendTracker(engine.TrendWindow),
	}
	if session.StartedAt != nil {
		runner.startedAt = *session.StartedAt
	} else {
		runner.startedAt = now()
	}
	runner.batchSize = domain.BatchSize(
		election.TotalVotes,
		election.TotalVotes,
		session.Speed,
		baseDuration,
		tickInterval,
	)
	runner.storeView()
	return runner
}

// run drives the replay until the session reaches a terminal status. The
// context covers the server's lifetime; cancellation ends the session as
// cancelled so subscribers observe a terminal event even on shutdown.
func (r *sessionRunner) run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		if err := r.iterator.Close(); err != nil {
			log.Printf("simulation %s: close vote iterator: %v", r.session.ID, err)
		}
	}()

	r.ticker = time.NewTicker(r.tickInterval)
	defer r.ticker.Stop()

	for {
		if r.session.Status == domain.SessionStatusRunning {
			select {
			case <-ctx.Done():
				r.cancelWithReason(shutdownCancelReason)
				return
			case req := <-r.controls:
				if r.handleControl(req) {
					return
				}
			case <-r.ticker.C:
				if r.tick(ctx) {
					return
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.cancelWithReason(shutdownCancelReason)
			return
		case req := <-r.controls:
			if r.handleControl(req) {
				return
			}
		}
	}
}

// tick consumes one batch, publishes the resulting snapshots, and reports
// whether the session reached a terminal status. A panic anywhere in the
// tick cancels the session with a diagnostic reason instead of taking the
// process down.
func (r *sessionRunner) tick(ctx context.Context) (terminal bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("simulation %s: tick panic: %v", r.session.ID, rec)
			r.cancelWithReason(fmt.Sprintf("tick failure: %v", rec))
			terminal = true
		}
	}()

	limit := r.batchSize
	if remaining := r.aggregator.Coverage().Remaining(); int64(limit) > remaining {
		limit = int(remaining)
	}

	var records []domain.VoteRecord
	if limit > 0 {
		batch, err := r.iterator.Next(ctx, limit)
		if err != nil {
			r.cancelWithReason(fmt.Sprintf("vote source failed: %v", err))
			return true
		}
		records = batch
	}
	if len(records) > 0 {
		r.aggregator.Apply(records)
	}

	results := r.publishTally()
	r.trends.Observe(results)
	r.publishProjection()

	if limit <= 0 || len(records) < limit || r.aggregator.Coverage().Remaining() <= 0 {
		r.complete()
		return true
	}

	r.storeView()
	return false
}

// handleControl applies one pause/resume/cancel command and reports whether
// the session reached a terminal status.
func (r *sessionRunner) handleControl(req controlRequest) (terminal bool) {
	switch req.kind {
	case controlPause:
		next, err := domain.TransitionSessionStatus(r.session, domain.SessionStatusPaused, r.now)
		if err != nil {
			req.reply <- controlResult{err: err}
			return false
		}
		r.session = next
		r.pausedAt = r.now()
		r.ticker.Stop()
		r.storeView()
		req.reply <- controlResult{view: r.currentView()}
		return false

	case controlResume:
		if req.speed != 0 {
			if err := domain.ValidateSpeed(req.speed); err != nil {
				req.reply <- controlResult{err: err}
				return false
			}
		}
		next, err := domain.TransitionSessionStatus(r.session, domain.SessionStatusRunning, r.now)
		if err != nil {
			req.reply <- controlResult{err: err}
			return false
		}
		if req.speed != 0 {
			next.Speed = req.speed
		}
		r.session = next
		r.pausedFor += r.now().Sub(r.pausedAt)
		r.batchSize = domain.BatchSize(
			r.election.TotalVotes,
			r.aggregator.Coverage().Remaining(),
			r.session.Speed,
			r.baseDuration,
			r.tickInterval,
		)
		r.ticker.Reset(r.tickInterval)
		r.storeView()
		req.reply <- controlResult{view: r.currentView()}
		return false

	case controlCancel:
		next, err := domain.TransitionSessionStatus(r.session, domain.SessionStatusCancelled, r.now)
		if err != nil {
			req.reply <- controlResult{err: err}
			return false
		}
		if r.session.Status == domain.SessionStatusPaused {
			r.pausedFor += r.now().Sub(r.pausedAt)
		}
		next.CancelReason = "cancelled by operator"
		r.session = next
		r.storeView()
		r.room.publish(frameTypeCancelled, cancelledPayload{
			Reason:     r.session.CancelReason,
			DurationMS: r.elapsed().Milliseconds(),
		})
		req.reply <- controlResult{view: r.currentView()}
		return true
	}

	req.reply <- controlResult{err: fmt.Errorf("unknown control kind %d", req.kind)}
	return false
}

// cancelWithReason ends the session from inside the run loop, outside the
// normal control path. Transition failures are ignored: when the session is
// already terminal there is nothing left to do.
func (r *sessionRunner) cancelWithReason(reason string) {
	if r.session.Status == domain.SessionStatusPaused {
		r.pausedFor += r.now().Sub(r.pausedAt)
	}
	next, err := domain.TransitionSessionStatus(r.session, domain.SessionStatusCancelled, r.now)
	if err != nil {
		return
	}
	next.CancelReason = reason
	r.session = next
	r.storeView()
	r.room.publish(frameTypeCancelled, cancelledPayload{
		Reason:     reason,
		DurationMS: r.elapsed().Milliseconds(),
	})
}

func (r *sessionRunner) complete() {
	next, err := domain.TransitionSessionStatus(r.session, domain.SessionStatusCompleted, r.now)
	if err != nil {
		return
	}
	r.session = next
	r.storeView()

	coverage := r.aggregator.Coverage()
	results := domain.RankParties(r.aggregator.PartyTallies(), coverage, r.election.Seats)
	r.room.publish(frameTypeCompleted, completedPayload{
		TotalVotes:        coverage.VotesCounted,
		Skipped:           r.aggregator.Skipped(),
		DurationMS:        r.elapsed().Milliseconds(),
		FinalPartyResults: partyResultPayloads(results),
	})
}

// publishTally emits the tick's tally snapshot and returns the ranked party
// results so the caller can feed the trend tracker from the same snapshot.
func (r *sessionRunner) publishTally() []domain.PartyResult {
	coverage := r.aggregator.Coverage()
	parties := domain.RankParties(r.aggregator.PartyTallies(), coverage, r.election.Seats)
	candidates := domain.RankCandidates(r.aggregator.CandidateTallies(), coverage)

	r.room.publish(frameTypeTallyUpdate, tallyUpdatePayload{
		PercentageCounted: 100 * coverage.VotePct(),
		CountedVotes:      coverage.VotesCounted,
		TotalVotes:        coverage.TotalVotes,
		RegionsCounted:    coverage.RegionsCounted,
		TotalRegions:      coverage.TotalRegions,
		Skipped:           r.aggregator.Skipped(),
		PartyResults:      partyResultPayloads(parties),
		CandidateResults:  candidateResultPayloads(candidates),
	})
	return parties
}

func (r *sessionRunner) publishProjection() {
	snapshot, ok := r.engine.Project(
		r.aggregator.PartyTallies(),
		r.aggregator.CandidateTallies(),
		r.aggregator.Coverage(),
		r.shares,
		r.trends,
	)
	if !ok {
		return
	}

	projections := make([]partyProjectionPayload, 0, len(snapshot.Parties))
	for _, party := range snapshot.Parties {
		projections = append(projections, partyProjectionPayload{
			PartyCode:           party.PartyCode,
			ProjectedVotes:      party.ProjectedVotes,
			ProjectedPercentage: party.ProjectedPercentage,
			Trend:               domain.TrendLabel(party.Trend),
		})
	}
	leading := make([]leadingCandidatePayload, 0, len(snapshot.Leading))
	for _, candidate := range snapshot.Leading {
		leading = append(leading, leadingCandidatePayload{
			Number:         candidate.Number,
			Name:           candidate.Name,
			PartyCode:      candidate.PartyCode,
			ProjectedVotes: candidate.ProjectedVotes,
			WinProbability: candidate.WinProbability,
		})
	}

	r.room.publish(frameTypeProjectionUpdate, projectionUpdatePayload{
		PercentageCounted: snapshot.CoveragePct,
		Confidence:        snapshot.Confidence,
		PartyProjections:  projections,
		LeadingCandidates: leading,
	})
}

// elapsed is the session's replay wall-clock time, excluding time spent
// paused.
func (r *sessionRunner) elapsed() time.Duration {
	elapsed := r.now().Sub(r.startedAt) - r.pausedFor
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (r *sessionRunner) currentView() sessionView {
	return sessionView{
		Session:  r.session,
		Coverage: r.aggregator.Coverage(),
		Skipped:  r.aggregator.Skipped(),
	}
}

func (r *sessionRunner) storeView() {
	view := r.currentView()
	r.viewMu.Lock()
	r.view = view
	r.viewMu.Unlock()
}

// describe returns the latest published view. Safe from any goroutine.
func (r *sessionRunner) describe() sessionView {
	r.viewMu.Lock()
	defer r.viewMu.Unlock()
	return r.view
}

// control forwards a command to the run loop and waits for its reply. When
// the loop has already exited the transition rules are evaluated against the
// final session state so callers get the same error a live loop would have
// produced.
func (r *sessionRunner) control(ctx context.Context, kind controlKind, speed float64) (sessionView, error) {
	req := controlRequest{
		kind:  kind,
		speed: speed,
		reply: make(chan controlResult, 1),
	}

	select {
	case r.controls <- req:
	case <-r.done:
		return sessionView{}, r.terminalControlError(kind)
	case <-ctx.Done():
		return sessionView{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.view, res.err
	case <-ctx.Done():
		return sessionView{}, ctx.Err()
	}
}

func (r *sessionRunner) terminalControlError(kind controlKind) error {
	target := domain.SessionStatusCancelled
	switch kind {
	case controlPause:
		target = domain.SessionStatusPaused
	case controlResume:
		target = domain.SessionStatusRunning
	}
	_, err := domain.TransitionSessionStatus(r.describe().Session, target, r.now)
	if err == nil {
		err = fmt.Errorf("session %s already ended", r.session.ID)
	}
	return err
}

type tallyUpdatePayload struct {
	PercentageCounted float64                  `json:"percentage_counted"`
	CountedVotes      int64                    `json:"counted_votes"`
	TotalVotes        int64                    `json:"total_votes"`
	RegionsCounted    int                      `json:"regions_counted"`
	TotalRegions      int                      `json:"total_regions"`
	Skipped           int64                    `json:"skipped"`
	PartyResults      []partyResultPayload     `json:"party_results"`
	CandidateResults  []candidateResultPayload `json:"candidate_results"`
}

type partyResultPayload struct {
	PartyCode     int     `json:"party_code"`
	PartyName     string  `json:"party_name"`
	Votes         int64   `json:"votes"`
	Percentage    float64 `json:"percentage"`
	QuotientShare float64 `json:"quotient_share,omitempty"`
	Rank          int     `json:"rank"`
}

type candidateResultPayload struct {
	Number     int     `json:"number"`
	Name       string  `json:"name"`
	PartyCode  int     `json:"party_code"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

type projectionUpdatePayload struct {
	PercentageCounted float64                   `json:"percentage_counted"`
	Confidence        int                       `json:"confidence"`
	PartyProjections  []partyProjectionPayload  `json:"party_projections"`
	LeadingCandidates []leadingCandidatePayload `json:"leading_candidates"`
}

type partyProjectionPayload struct {
	PartyCode           int     `json:"party_code"`
	ProjectedVotes      int64   `json:"projected_votes"`
	ProjectedPercentage float64 `json:"projected_percentage"`
	Trend               string  `json:"trend"`
}

type leadingCandidatePayload struct {
	Number         int    `json:"number"`
	Name           string `json:"name"`
	PartyCode      int    `json:"party_code"`
	ProjectedVotes int64  `json:"projected_votes"`
	WinProbability int    `json:"win_probability"`
}

type completedPayload struct {
	TotalVotes        int64                `json:"total_votes"`
	Skipped           int64                `json:"skipped"`
	DurationMS        int64                `json:"duration_ms"`
	FinalPartyResults []partyResultPayload `json:"final_party_results"`
}

type cancelledPayload struct {
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
}

func partyResultPayloads(results []domain.PartyResult) []partyResultPayload {
	payloads := make([]partyResultPayload, 0, len(results))
	for _, result := range results {
		payloads = append(payloads, partyResultPayload{
			PartyCode:     result.PartyCode,
			PartyName:     result.Name,
			Votes:         result.Votes,
			Percentage:    result.Percentage,
			QuotientShare: result.QuotientShare,
			Rank:          result.Rank,
		})
	}
	return payloads
}

func candidateResultPayloads(results []domain.CandidateResult) []candidateResultPayload {
	payloads := make([]candidateResultPayload, 0, len(results))
	for _, result := range results {
		payloads = append(payloads, candidateResultPayload{
			Number:     result.Number,
			Name:       result.Name,
			PartyCode:  result.PartyCode,
			Votes:      result.Votes,
			Percentage: result.Percentage,
			Rank:       result.Rank,
		})
	}
	return payloads
}
