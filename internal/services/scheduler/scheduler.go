// Package scheduler runs background maintenance: the job recovery sweep and
// the enrichment cache purge.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
)

// JobRecoverer re-drives jobs stranded in a non-terminal state, typically
// after a process restart. Advancing is idempotent, so sweeping a healthy job
// is harmless.
type JobRecoverer interface {
	RecoverJobs(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner for both maintenance tasks.
type Scheduler struct {
	config    *common.SchedulerConfig
	recoverer JobRecoverer
	cache     interfaces.CacheStorage
	cron      *cron.Cron
	logger    arbor.ILogger
}

// NewScheduler creates a maintenance scheduler.
func NewScheduler(config *common.SchedulerConfig, recoverer JobRecoverer, cache interfaces.CacheStorage, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:    config,
		recoverer: recoverer,
		cache:     cache,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers both schedules and begins the cron loop.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Maintenance scheduler disabled")
		return nil
	}

	recoverySchedule := s.config.RecoverySchedule
	if recoverySchedule == "" {
		recoverySchedule = "@every 1m"
	}
	purgeSchedule := s.config.CachePurge
	if purgeSchedule == "" {
		purgeSchedule = "@every 1h"
	}

	if _, err := s.cron.AddFunc(recoverySchedule, s.runRecovery); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(purgeSchedule, s.runCachePurge); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("recovery", recoverySchedule).
		Str("cache_purge", purgeSchedule).
		Msg("Maintenance scheduler started")

	return nil
}

// Stop halts the cron loop, waiting for in-flight runs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

func (s *Scheduler) runRecovery() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	recovered, err := s.recoverer.RecoverJobs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Job recovery sweep failed")
		return
	}
	if recovered > 0 {
		s.logger.Info().Int("recovered", recovered).Msg("Job recovery sweep completed")
	}
}

func (s *Scheduler) runCachePurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache purge failed")
		return
	}
	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("Expired cache entries purged")
	}
}
