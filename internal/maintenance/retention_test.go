package maintenance

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockStore struct {
	metricsCutoff time.Time
	alertsCutoff  time.Time
	metricsErr    error
	deleted       int64
}

func (m *mockStore) DeleteOldAgentMetrics(_ context.Context, cutoff time.Time) (int64, error) {
	if m.metricsErr != nil {
		return 0, m.metricsErr
	}
	m.metricsCutoff = cutoff
	m.deleted += 3
	return 3, nil
}

func (m *mockStore) DeleteOldResolvedAlerts(_ context.Context, cutoff time.Time) (int64, error) {
	m.alertsCutoff = cutoff
	m.deleted += 2
	return 2, nil
}

func TestSweep(t *testing.T) {
	t.Run("deletes with retention cutoff", func(t *testing.T) {
		store := &mockStore{}
		s := NewRetentionSweeper(store, 30, zerolog.New(io.Discard))

		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		if store.deleted != 5 {
			t.Errorf("deleted = %d, want 5", store.deleted)
		}

		wantCutoff := time.Now().Add(-30 * 24 * time.Hour)
		if d := store.metricsCutoff.Sub(wantCutoff); d < -time.Minute || d > time.Minute {
			t.Errorf("metrics cutoff = %v, want about %v", store.metricsCutoff, wantCutoff)
		}
	})

	t.Run("propagates store error", func(t *testing.T) {
		store := &mockStore{metricsErr: errors.New("db down")}
		s := NewRetentionSweeper(store, 30, zerolog.New(io.Discard))

		if err := s.Sweep(context.Background()); err == nil {
			t.Error("Sweep() swallowed store error")
		}
		if !store.alertsCutoff.IsZero() {
			t.Error("alert sweep ran despite metric sweep failure")
		}
	})

	t.Run("non-positive retention falls back to 90 days", func(t *testing.T) {
		store := &mockStore{}
		s := NewRetentionSweeper(store, 0, zerolog.New(io.Discard))

		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		wantCutoff := time.Now().Add(-90 * 24 * time.Hour)
		if d := store.metricsCutoff.Sub(wantCutoff); d < -time.Minute || d > time.Minute {
			t.Errorf("cutoff = %v, want about %v", store.metricsCutoff, wantCutoff)
		}
	})
}

func TestStartStop(t *testing.T) {
	store := &mockStore{}
	s := NewRetentionSweeper(store, 30, zerolog.New(io.Discard))

	if err := s.Start("@daily"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewRetentionSweeper(&mockStore{}, 30, zerolog.New(io.Discard))
	if err := s.Start("not a schedule"); err == nil {
		t.Error("Start() accepted invalid cron expression")
	}
}
