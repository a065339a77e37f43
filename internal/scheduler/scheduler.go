// Package scheduler runs periodic housekeeping: usage gauges, temp files and idle rate limiters.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/internal/services/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// limiterIdle is how long a user's rate limit bucket survives without traffic
const limiterIdle = time.Hour

// StatsSource counts users and interactions
type StatsSource interface {
	GlobalStats(ctx context.Context) (models.GlobalStats, error)
}

// UsageGauge publishes the counts
type UsageGauge interface {
	SetUsage(users, interactions int)
}

// Sweeper drops idle per-user state
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron    *cron.Cron
	cfg     *config.SchedulerConfig
	tempDir string
	stats   StatsSource
	gauge   UsageGauge
	sweeper Sweeper
	logger  logrus.FieldLogger
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// New creates a scheduler. gauge and sweeper may be nil.
func New(cfg *config.SchedulerConfig, tempDir string, stats StatsSource, gauge UsageGauge, sweeper Sweeper, logger logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		cfg:     cfg,
		tempDir: tempDir,
		stats:   stats,
		gauge:   gauge,
		sweeper: sweeper,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start registers the jobs and starts the cron loop. Usage is refreshed once up front.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.MetricsRefresh, s.refreshJob); err != nil {
		return fmt.Errorf("invalid metrics_refresh schedule %q: %w", s.cfg.MetricsRefresh, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.TempCleanup, s.cleanupJob); err != nil {
		return fmt.Errorf("invalid temp_cleanup schedule %q: %w", s.cfg.TempCleanup, err)
	}

	s.refreshJob()
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"metrics_refresh": s.cfg.MetricsRefresh,
		"temp_cleanup":    s.cfg.TempCleanup,
	}).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether any job is registered
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

func (s *Scheduler) refreshJob() {
	if err := s.RefreshUsage(s.ctx); err != nil && !errors.Is(err, storage.ErrNoDatabase) {
		s.logger.WithError(err).Warn("Usage refresh failed")
	}
}

func (s *Scheduler) cleanupJob() {
	removed, err := s.CleanTemp()
	if err != nil {
		s.logger.WithError(err).Warn("Temp cleanup failed")
	}

	swept := 0
	if s.sweeper != nil {
		swept = s.sweeper.Sweep(limiterIdle)
	}

	s.logger.WithFields(logrus.Fields{
		"temp_files_removed": removed,
		"limiters_swept":     swept,
	}).Debug("Cleanup finished")
}

// RefreshUsage copies global counts into the gauge
func (s *Scheduler) RefreshUsage(ctx context.Context) error {
	stats, err := s.stats.GlobalStats(ctx)
	if err != nil {
		return err
	}
	if s.gauge != nil {
		s.gauge.SetUsage(stats.UniqueUsers, stats.TotalInteractions)
	}
	return nil
}

// CleanTemp removes downloads older than the configured age and returns how many were removed
func (s *Scheduler) CleanTemp() (int, error) {
	if s.tempDir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(s.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	maxAge := s.cfg.TempMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	cutoff := s.now().Add(-maxAge)

	var errs []error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.tempDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
