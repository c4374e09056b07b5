package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/vintage-store-backend/internal/app/service"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/ikkim/vintage-store-backend/pkg/metrics"
	redislock "github.com/ikkim/vintage-store-backend/pkg/redis"
	"github.com/robfig/cron/v3"
)

const (
	JobSweep   = "reservation_sweep"
	JobRelease = "reservation_release"

	DefaultSweepSchedule   = "@every 10m"
	DefaultReleaseSchedule = "@every 30s"

	SweepLockKey   = "vintage-store:lock:reservation-sweep"
	ReleaseLockKey = "vintage-store:lock:reservation-release"

	jobTimeout = 2 * time.Minute
)

// Options configure a ReservationScheduler. Nil locks fall back to
// in-process locks.
type Options struct {
	SweepSchedule   string
	ReleaseSchedule string
	SweepLock       redislock.Lock
	ReleaseLock     redislock.Lock
	Metrics         *metrics.JobMetrics
}

// ReservationScheduler periodically sweeps stale reservations and runs due
// release jobs. Every run, scheduled or on demand, holds the job's lock.
type ReservationScheduler struct {
	cron               *cron.Cron
	reservationService service.ReservationService
	sweepSchedule      string
	releaseSchedule    string
	sweepLock          redislock.Lock
	releaseLock        redislock.Lock
	metrics            *metrics.JobMetrics
}

func NewReservationScheduler(reservationService service.ReservationService, opts Options) *ReservationScheduler {
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = DefaultSweepSchedule
	}
	if opts.ReleaseSchedule == "" {
		opts.ReleaseSchedule = DefaultReleaseSchedule
	}
	if opts.SweepLock == nil {
		opts.SweepLock = redislock.NewLocalLock()
	}
	if opts.ReleaseLock == nil {
		opts.ReleaseLock = redislock.NewLocalLock()
	}

	log := cronLogger{}
	return &ReservationScheduler{
		cron:               cron.New(cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log))),
		reservationService: reservationService,
		sweepSchedule:      opts.SweepSchedule,
		releaseSchedule:    opts.ReleaseSchedule,
		sweepLock:          opts.SweepLock,
		releaseLock:        opts.ReleaseLock,
		metrics:            opts.Metrics,
	}
}

// Start registers both jobs and starts the cron loop
func (s *ReservationScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.sweepSchedule, s.tick(JobSweep, func(ctx context.Context) error {
		_, err := s.RunSweep(ctx)
		return err
	})); err != nil {
		logger.Error("Failed to add cron job for reservation sweep", err, map[string]interface{}{
			"schedule": s.sweepSchedule,
		})
		return fmt.Errorf("schedule %s: %w", JobSweep, err)
	}

	if _, err := s.cron.AddFunc(s.releaseSchedule, s.tick(JobRelease, func(ctx context.Context) error {
		_, err := s.RunReleases(ctx)
		return err
	})); err != nil {
		logger.Error("Failed to add cron job for reservation release", err, map[string]interface{}{
			"schedule": s.releaseSchedule,
		})
		return fmt.Errorf("schedule %s: %w", JobRelease, err)
	}

	s.cron.Start()
	logger.Info("Reservation scheduler started", map[string]interface{}{
		"sweep_schedule":   s.sweepSchedule,
		"release_schedule": s.releaseSchedule,
	})
	return nil
}

// Stop halts the cron loop and waits for running jobs
func (s *ReservationScheduler) Stop() {
	logger.Info("Stopping reservation scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Reservation scheduler stopped")
}

// RunSweep sweeps once under the sweep lock. When another runner holds the
// lock it returns an empty result.
func (s *ReservationScheduler) RunSweep(ctx context.Context) (*service.SweepResult, error) {
	result := &service.SweepResult{Freed: []service.FreedProduct{}}
	err := s.runLocked(ctx, JobSweep, s.sweepLock, func(ctx context.Context) error {
		swept, err := s.reservationService.SweepExpired(ctx)
		if swept != nil {
			result = swept
		}
		return err
	})
	return result, err
}

// RunReleases processes due release jobs once under the release lock.
func (s *ReservationScheduler) RunReleases(ctx context.Context) (*service.ReleaseResult, error) {
	result := &service.ReleaseResult{Released: []service.FreedProduct{}}
	err := s.runLocked(ctx, JobRelease, s.releaseLock, func(ctx context.Context) error {
		released, err := s.reservationService.ProcessDueReleases(ctx)
		if released != nil {
			result = released
		}
		return err
	})
	return result, err
}

func (s *ReservationScheduler) tick(job string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := run(ctx); err != nil {
			// retried on the next tick
			logger.Error("Scheduled reservation job failed", err, map[string]interface{}{
				"job": job,
			})
		}
	}
}

func (s *ReservationScheduler) runLocked(ctx context.Context, job string, lock redislock.Lock, run func(ctx context.Context) error) error {
	token, ok, err := lock.Acquire(ctx)
	if err != nil {
		s.metrics.IncFailure(job)
		return fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if !ok {
		s.metrics.IncSkipped(job)
		logger.Debug("Reservation job already running elsewhere; skipping", map[string]interface{}{
			"job": job,
		})
		return nil
	}
	defer func() {
		if relErr := lock.Release(context.Background(), token); relErr != nil {
			logger.Error("Failed to release job lock", relErr, map[string]interface{}{
				"job": job,
			})
		}
	}()

	start := time.Now()
	err = run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job, duration)

	if err != nil {
		s.metrics.IncFailure(job)
		return err
	}
	s.metrics.IncSuccess(job)
	logger.Debug("Reservation job completed", map[string]interface{}{
		"job":         job,
		"duration_ms": duration.Milliseconds(),
	})
	return nil
}

// cronLogger adapts pkg/logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, err, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
