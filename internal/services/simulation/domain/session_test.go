package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
)

func TestCreateSessionDefaults(t *testing.T) {
	input := CreateSessionInput{Year: 2022, Speed: 1}

	session, err := CreateSession(input, nil, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated id")
	}
	if session.Status != SessionStatusIdle {
		t.Fatalf("expected status idle, got %v", session.Status)
	}
}

func TestCreateSessionFixedInputs(t *testing.T) {
	fixedTime := time.Date(2026, 1, 23, 10, 0, 0, 0, time.UTC)
	input := CreateSessionInput{Year: 2022, Speed: 2.5}

	session, err := CreateSession(input, func() time.Time { return fixedTime }, func() (string, error) {
		return "sess123", nil
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if session.ID != "sess123" {
		t.Fatalf("expected id sess123, got %q", session.ID)
	}
	if session.Year != 2022 {
		t.Fatalf("expected year 2022, got %d", session.Year)
	}
	if session.Speed != 2.5 {
		t.Fatalf("expected speed 2.5, got %v", session.Speed)
	}
	if session.Status != SessionStatusIdle {
		t.Fatalf("expected status idle, got %v", session.Status)
	}
	if !session.CreatedAt.Equal(fixedTime) {
		t.Fatalf("expected created_at %v, got %v", fixedTime, session.CreatedAt)
	}
	if session.StartedAt != nil {
		t.Fatalf("expected started_at nil, got %v", session.StartedAt)
	}
	if session.CompletedAt != nil {
		t.Fatalf("expected completed_at nil, got %v", session.CompletedAt)
	}
	if session.CancelledAt != nil {
		t.Fatalf("expected cancelled_at nil, got %v", session.CancelledAt)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateSessionInput
		code  apperrors.Code
	}{
		{name: "zero year", input: CreateSessionInput{Year: 0, Speed: 1}, code: apperrors.CodeSimulationInvalidYear},
		{name: "negative year", input: CreateSessionInput{Year: -2022, Speed: 1}, code: apperrors.CodeSimulationInvalidYear},
		{name: "zero speed", input: CreateSessionInput{Year: 2022, Speed: 0}, code: apperrors.CodeSimulationInvalidSpeed},
		{name: "negative speed", input: CreateSessionInput{Year: 2022, Speed: -1}, code: apperrors.CodeSimulationInvalidSpeed},
		{name: "speed above max", input: CreateSessionInput{Year: 2022, Speed: 10.5}, code: apperrors.CodeSimulationInvalidSpeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateSession(tt.input, nil, nil)
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected domain error, got %v", err)
			}
			if domainErr.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, domainErr.Code)
			}
		})
	}
}

func TestValidateSpeedBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		speed   float64
		wantErr bool
	}{
		{name: "minimum positive", speed: 0.001},
		{name: "one", speed: 1},
		{name: "exactly max", speed: SpeedMax},
		{name: "zero", speed: 0, wantErr: true},
		{name: "just above max", speed: SpeedMax + 0.001, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpeed(tt.speed)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransitionSessionStatusAllowed(t *testing.T) {
	baseTime := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	transitionTime := baseTime.Add(2 * time.Hour)

	t.Run("idle to running", func(t *testing.T) {
		session := Session{
			ID:        "sess-1",
			Status:    SessionStatusIdle,
			CreatedAt: baseTime,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusRunning, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.Status != SessionStatusRunning {
			t.Fatalf("expected status RUNNING, got %v", updated.Status)
		}
		if updated.StartedAt == nil || !updated.StartedAt.Equal(transitionTime) {
			t.Fatalf("expected started_at %v, got %v", transitionTime, updated.StartedAt)
		}
		if updated.CompletedAt != nil {
			t.Fatalf("expected completed_at nil, got %v", updated.CompletedAt)
		}
	})

	t.Run("running to paused", func(t *testing.T) {
		startedAt := baseTime.Add(time.Minute)
		session := Session{
			ID:        "sess-2",
			Status:    SessionStatusRunning,
			CreatedAt: baseTime,
			StartedAt: &startedAt,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusPaused, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.Status != SessionStatusPaused {
			t.Fatalf("expected status PAUSED, got %v", updated.Status)
		}
		if updated.StartedAt == nil || !updated.StartedAt.Equal(startedAt) {
			t.Fatalf("expected started_at preserved, got %v", updated.StartedAt)
		}
	})

	t.Run("paused to running preserves started_at", func(t *testing.T) {
		startedAt := baseTime.Add(time.Minute)
		session := Session{
			ID:        "sess-3",
			Status:    SessionStatusPaused,
			CreatedAt: baseTime,
			StartedAt: &startedAt,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusRunning, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.StartedAt == nil || !updated.StartedAt.Equal(startedAt) {
			t.Fatalf("expected started_at %v, got %v", startedAt, updated.StartedAt)
		}
	})

	t.Run("running to completed", func(t *testing.T) {
		session := Session{
			ID:        "sess-4",
			Status:    SessionStatusRunning,
			CreatedAt: baseTime,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusCompleted, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.CompletedAt == nil || !updated.CompletedAt.Equal(transitionTime) {
			t.Fatalf("expected completed_at %v, got %v", transitionTime, updated.CompletedAt)
		}
		if updated.CancelledAt != nil {
			t.Fatalf("expected cancelled_at nil, got %v", updated.CancelledAt)
		}
	})

	t.Run("running to cancelled", func(t *testing.T) {
		session := Session{
			ID:        "sess-5",
			Status:    SessionStatusRunning,
			CreatedAt: baseTime,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusCancelled, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.CancelledAt == nil || !updated.CancelledAt.Equal(transitionTime) {
			t.Fatalf("expected cancelled_at %v, got %v", transitionTime, updated.CancelledAt)
		}
		if updated.CompletedAt != nil {
			t.Fatalf("expected completed_at nil, got %v", updated.CompletedAt)
		}
	})

	t.Run("paused to cancelled", func(t *testing.T) {
		session := Session{
			ID:        "sess-6",
			Status:    SessionStatusPaused,
			CreatedAt: baseTime,
		}
		updated, err := TransitionSessionStatus(session, SessionStatusCancelled, func() time.Time {
			return transitionTime
		})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if updated.CancelledAt == nil || !updated.CancelledAt.Equal(transitionTime) {
			t.Fatalf("expected cancelled_at %v, got %v", transitionTime, updated.CancelledAt)
		}
	})
}

func TestTransitionSessionStatusDisallowed(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
	}{
		{name: "idle to paused", from: SessionStatusIdle, to: SessionStatusPaused},
		{name: "idle to completed", from: SessionStatusIdle, to: SessionStatusCompleted},
		{name: "idle to cancelled", from: SessionStatusIdle, to: SessionStatusCancelled},
		{name: "running to idle", from: SessionStatusRunning, to: SessionStatusIdle},
		{name: "paused to completed", from: SessionStatusPaused, to: SessionStatusCompleted},
		{name: "completed to running", from: SessionStatusCompleted, to: SessionStatusRunning},
		{name: "completed to cancelled", from: SessionStatusCompleted, to: SessionStatusCancelled},
		{name: "cancelled to running", from: SessionStatusCancelled, to: SessionStatusRunning},
		{name: "cancelled to completed", from: SessionStatusCancelled, to: SessionStatusCompleted},
		{name: "cancelled to cancelled", from: SessionStatusCancelled, to: SessionStatusCancelled},
		{name: "unspecified to running", from: SessionStatusUnspecified, to: SessionStatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "sess-1",
				Status:    tt.from,
				CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			}
			_, err := TransitionSessionStatus(session, tt.to, time.Now)
			if !errors.Is(err, ErrInvalidSessionStatusTransition) {
				t.Fatalf("expected ErrInvalidSessionStatusTransition, got %v", err)
			}
		})
	}
}

func TestTransitionSessionStatusDisallowedMetadata(t *testing.T) {
	session := Session{ID: "sess-1", Status: SessionStatusIdle}

	_, err := TransitionSessionStatus(session, SessionStatusPaused, func() time.Time { return time.Now().UTC() })
	if err == nil {
		t.Fatal("expected error")
	}

	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Code != apperrors.CodeSimulationInvalidTransition {
		t.Fatalf("expected code %s, got %s", apperrors.CodeSimulationInvalidTransition, domainErr.Code)
	}
	if domainErr.Metadata["FromStatus"] != "IDLE" {
		t.Fatalf("expected FromStatus IDLE, got %s", domainErr.Metadata["FromStatus"])
	}
	if domainErr.Metadata["ToStatus"] != "PAUSED" {
		t.Fatalf("expected ToStatus PAUSED, got %s", domainErr.Metadata["ToStatus"])
	}
}

func TestTransitionSessionStatusPreservesExistingTimestamps(t *testing.T) {
	baseTime := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	startedAt := baseTime.Add(30 * time.Minute)
	transitionTime := baseTime.Add(2 * time.Hour)

	session := Session{
		ID:        "sess-1",
		Status:    SessionStatusRunning,
		CreatedAt: baseTime,
		StartedAt: &startedAt,
	}

	updated, err := TransitionSessionStatus(session, SessionStatusCompleted, func() time.Time { return transitionTime })
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.StartedAt == nil || !updated.StartedAt.Equal(startedAt) {
		t.Fatalf("expected started_at preserved, got %v", updated.StartedAt)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(transitionTime) {
		t.Fatalf("expected completed_at %v, got %v", transitionTime, updated.CompletedAt)
	}
}

func TestSessionStatusFromLabel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SessionStatus
		wantErr bool
	}{
		{name: "short idle", input: "IDLE", want: SessionStatusIdle},
		{name: "prefixed idle", input: "SESSION_STATUS_IDLE", want: SessionStatusIdle},
		{name: "short running", input: "RUNNING", want: SessionStatusRunning},
		{name: "prefixed running", input: "SESSION_STATUS_RUNNING", want: SessionStatusRunning},
		{name: "short paused", input: "PAUSED", want: SessionStatusPaused},
		{name: "short completed", input: "COMPLETED", want: SessionStatusCompleted},
		{name: "short cancelled", input: "CANCELLED", want: SessionStatusCancelled},
		{name: "lowercase", input: "running", want: SessionStatusRunning},
		{name: "whitespace trimmed", input: "  PAUSED  ", want: SessionStatusPaused},
		{name: "mixed case", input: "Completed", want: SessionStatusCompleted},
		{name: "empty string", input: "", wantErr: true},
		{name: "unknown value", input: "INVALID", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sessionStatusFromLabel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSessionStatusLabelRoundTrip(t *testing.T) {
	statuses := []SessionStatus{
		SessionStatusIdle,
		SessionStatusRunning,
		SessionStatusPaused,
		SessionStatusCompleted,
		SessionStatusCancelled,
	}

	for _, status := range statuses {
		label := SessionStatusLabel(status)
		got, err := sessionStatusFromLabel(label)
		if err != nil {
			t.Fatalf("parse label %q: %v", label, err)
		}
		if got != status {
			t.Fatalf("round trip for %q: got %d, want %d", label, got, status)
		}
	}
}
