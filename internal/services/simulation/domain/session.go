package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
	"github.com/urnalabs/apura/internal/platform/id"
)

// SessionStatus describes the lifecycle of a replay session.
type SessionStatus int

const (
	// SessionStatusUnspecified represents an invalid session status value.
	SessionStatusUnspecified SessionStatus = iota
	// SessionStatusIdle indicates the session exists but has not started ticking.
	SessionStatusIdle
	// SessionStatusRunning indicates the session is consuming vote batches.
	SessionStatusRunning
	// SessionStatusPaused indicates ticking is suspended with tallies kept.
	SessionStatusPaused
	// SessionStatusCompleted indicates the vote source was exhausted.
	SessionStatusCompleted
	// SessionStatusCancelled indicates the session was stopped before completion.
	SessionStatusCancelled
)

// SpeedMax is the highest accepted replay speed multiplier. Speeds must be
// greater than zero and at most SpeedMax.
const SpeedMax = 10.0

var (
	// ErrInvalidSessionStatusTransition indicates a disallowed session status change.
	ErrInvalidSessionStatusTransition = apperrors.New(apperrors.CodeSimulationInvalidTransition, "session status transition is not allowed")
)

// Session holds the identity and lifecycle state of one replay run. Tallies
// live in the session's aggregator, never on the session itself.
type Session struct {
	ID    string
	Year  int
	Speed float64
	// Status transitions through idle -> running -> {paused <-> running} ->
	// completed, with running|paused -> cancelled. Completed and cancelled
	// are terminal.
	Status    SessionStatus
	CreatedAt time.Time
	// StartedAt is set on the idle -> running transition.
	StartedAt *time.Time
	// CompletedAt is set when the vote source is exhausted.
	CompletedAt *time.Time
	// CancelledAt is set when the session is cancelled.
	CancelledAt *time.Time
	// CancelReason carries the diagnostic for cancellations that were not
	// requested by a caller, such as a recovered tick failure.
	CancelReason string
}

// CreateSessionInput describes the parameters needed to create a session.
type CreateSessionInput struct {
	Year  int
	Speed float64
}

// CreateSession creates an idle session with a generated ID and timestamps.
// The caller is responsible for checking that a dataset exists for the year;
// CreateSession only rejects years that cannot name one.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if input.Year <= 0 {
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeSimulationInvalidYear,
			fmt.Sprintf("invalid election year: %d", input.Year),
			map[string]string{"Year": strconv.Itoa(input.Year)},
		)
	}
	if err := ValidateSpeed(input.Speed); err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	return Session{
		ID:        sessionID,
		Year:      input.Year,
		Speed:     input.Speed,
		Status:    SessionStatusIdle,
		CreatedAt: now().UTC(),
	}, nil
}

// ValidateSpeed checks that a replay speed multiplier is in (0, SpeedMax].
func ValidateSpeed(speed float64) error {
	if speed <= 0 || speed > SpeedMax {
		return apperrors.WithMetadata(
			apperrors.CodeSimulationInvalidSpeed,
			fmt.Sprintf("speed out of range: %v", speed),
			map[string]string{"Speed": strconv.FormatFloat(speed, 'g', -1, 64)},
		)
	}
	return nil
}

// TransitionSessionStatus applies a status transition and updates timestamps.
func TransitionSessionStatus(session Session, target SessionStatus, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if !isSessionStatusTransitionAllowed(session.Status, target) {
		fromStatus := SessionStatusLabel(session.Status)
		toStatus := SessionStatusLabel(target)
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeSimulationInvalidTransition,
			fmt.Sprintf("session status transition not allowed: %s -> %s", fromStatus, toStatus),
			map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
		)
	}

	updated := session
	updated.Status = target
	at := now().UTC()
	if target == SessionStatusRunning && updated.StartedAt == nil {
		updated.StartedAt = &at
	}
	if target == SessionStatusCompleted && updated.CompletedAt == nil {
		updated.CompletedAt = &at
	}
	if target == SessionStatusCancelled && updated.CancelledAt == nil {
		updated.CancelledAt = &at
	}
	return updated, nil
}

// isSessionStatusTransitionAllowed reports whether a status transition is permitted.
func isSessionStatusTransitionAllowed(from, to SessionStatus) bool {
	switch from {
	case SessionStatusIdle:
		return to == SessionStatusRunning
	case SessionStatusRunning:
		return to == SessionStatusPaused || to == SessionStatusCompleted || to == SessionStatusCancelled
	case SessionStatusPaused:
		return to == SessionStatusRunning || to == SessionStatusCancelled
	default:
		return false
	}
}

// SessionStatusLabel returns a stable label for a session status.
func SessionStatusLabel(status SessionStatus) string {
	switch status {
	case SessionStatusIdle:
		return "IDLE"
	case SessionStatusRunning:
		return "RUNNING"
	case SessionStatusPaused:
		return "PAUSED"
	case SessionStatusCompleted:
		return "COMPLETED"
	case SessionStatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// sessionStatusFromLabel parses a string label into a SessionStatus.
// It trims whitespace and matches case-insensitively. Both short ("RUNNING")
// and prefixed ("SESSION_STATUS_RUNNING") forms are accepted.
func sessionStatusFromLabel(value string) (SessionStatus, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return SessionStatusUnspecified, fmt.Errorf("session status is required")
	}
	switch strings.ToUpper(trimmed) {
	case "IDLE", "SESSION_STATUS_IDLE":
		return SessionStatusIdle, nil
	case "RUNNING", "SESSION_STATUS_RUNNING":
		return SessionStatusRunning, nil
	case "PAUSED", "SESSION_STATUS_PAUSED":
		return SessionStatusPaused, nil
	case "COMPLETED", "SESSION_STATUS_COMPLETED":
		return SessionStatusCompleted, nil
	case "CANCELLED", "SESSION_STATUS_CANCELLED":
		return SessionStatusCancelled, nil
	default:
		return SessionStatusUnspecified, fmt.Errorf("unknown session status: %s", trimmed)
	}
}
