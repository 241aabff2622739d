// Package maintenance runs scheduled housekeeping jobs.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Store is the datastore surface the sweeper needs. It only ever touches
// telemetry rows; license and audit state is never swept.
type Store interface {
	DeleteOldAgentMetrics(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOldResolvedAlerts(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper deletes telemetry rows older than the retention window on
// a cron schedule.
type RetentionSweeper struct {
	store     Store
	retention time.Duration
	cron      *cron.Cron
	logger    zerolog.Logger
}

// NewRetentionSweeper creates a sweeper keeping the given number of days of
// telemetry.
func NewRetentionSweeper(store Store, retentionDays int, logger zerolog.Logger) *RetentionSweeper {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionSweeper{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		cron:      cron.New(),
		logger:    logger.With().Str("component", "retention").Logger(),
	}
}

// Start schedules the sweep with the given cron expression and begins the
// scheduler.
func (s *RetentionSweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Dur("retention", s.retention).Msg("retention sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("retention sweeper stopped")
}

// Sweep deletes telemetry rows older than the retention window.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention)

	metrics, err := s.store.DeleteOldAgentMetrics(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep agent metrics: %w", err)
	}
	alerts, err := s.store.DeleteOldResolvedAlerts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep resolved alerts: %w", err)
	}

	s.logger.Info().
		Int64("metrics_deleted", metrics).
		Int64("alerts_deleted", alerts).
		Time("cutoff", cutoff).
		Msg("retention sweep complete")
	return nil
}
