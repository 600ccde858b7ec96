package server

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/services/simulation/domain"
)

// sessionRegistry tracks live session runners by id. Terminal sessions stay
// queryable until the janitor evicts them after the retention TTL, so a
// dashboard that polls right after completion still finds the final state.
type sessionRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	runners map[string]*sessionRunner
}

func newSessionRegistry(ttl time.Duration, now func() time.Time) *sessionRegistry {
	return &sessionRegistry{
		ttl:     ttl,
		now:     now,
		runners: make(map[string]*sessionRunner),
	}
}

func (reg *sessionRegistry) add(runner *sessionRunner) {
	reg.mu.Lock()
	reg.runners[runner.session.ID] = runner
	reg.mu.Unlock()
}

func (reg *sessionRegistry) get(id string) (*sessionRunner, error) {
	reg.mu.Lock()
	runner, ok := reg.runners[id]
	reg.mu.Unlock()
	if !ok {
		return nil, apperrors.WithMetadata(
			apperrors.CodeSimulationNotFound,
			"simulation session not found",
			map[string]string{"SessionID": id},
		)
	}
	return runner, nil
}

func (reg *sessionRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.runners)
}

// sweep evicts sessions that reached a terminal status at least ttl ago and
// drops their stream rooms. Returns how many sessions were evicted.
func (reg *sessionRegistry) sweep(hub *streamHub) int {
	now := reg.now()

	reg.mu.Lock()
	var expired []string
	for id, runner := range reg.runners {
		view := runner.describe()
		endedAt := terminalTime(view.Session)
		if endedAt == nil {
			continue
		}
		if now.Sub(*endedAt) >= reg.ttl {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(reg.runners, id)
	}
	reg.mu.Unlock()

	for _, id := range expired {
		hub.drop(id)
	}
	return len(expired)
}

// runJanitor sweeps periodically until the context ends.
func (reg *sessionRegistry) runJanitor(ctx context.Context, hub *streamHub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.sweep(hub)
		}
	}
}

// terminalTime returns when the session ended, or nil while it is live.
func terminalTime(session domain.Session) *time.Time {
	switch session.Status {
	case domain.SessionStatusCompleted:
		return session.CompletedAt
	case domain.SessionStatusCancelled:
		return session.CancelledAt
	default:
		return nil
	}
}
