package reservation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

// ErrRunInFlight means a progression run was requested while another one
// holds the singleton run lock. Overlapping runs are skipped, not queued.
var ErrRunInFlight = errors.New("progression run already in flight")

const progressionLockKey = "lock:scheduler:progression"

// SchedulerConfig tunes the progression scheduler.
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int64
	MaxRetries int
	RetryDelay time.Duration
	RunBudget  time.Duration
}

// RunMetrics is the aggregate outcome of one progression run.
type RunMetrics struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Expired   int           `json:"expired"`
	Completed int           `json:"completed"`
	NoShows   int           `json:"noShows"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Degraded  bool          `json:"degraded"`
	BudgetHit bool          `json:"budgetHit"`
}

// ProgressionScheduler periodically scans overdue reservations and advances
// them through the same transition engine manual actions use, so there is
// exactly one authoritative state machine. It runs as a process-scoped
// component with an explicit Start/Stop lifecycle.
type ProgressionScheduler struct {
	Repo   reservationRepo.ReservationRepository
	Engine *Engine
	Grace  *GracePolicy
	Clock  Clock
	Locker SingletonLocker
	Logger *zap.Logger
	Cfg    SchedulerConfig

	mu     sync.Mutex
	last   *RunMetrics
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the periodic loop. No-op when the scheduler is disabled.
func (s *ProgressionScheduler) Start(ctx context.Context) {
	if !s.Cfg.Enabled {
		s.Logger.Info("progression scheduler disabled by configuration")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.Cfg.Interval)
		defer ticker.Stop()

		s.Logger.Info("progression scheduler started",
			zap.Duration("interval", s.Cfg.Interval),
			zap.Int64("batchSize", s.Cfg.BatchSize))
		for {
			select {
			case <-ctx.Done():
				s.Logger.Info("progression scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInFlight) {
					s.Logger.Error("progression run failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop shuts the loop down and waits for it to exit.
func (s *ProgressionScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status returns the metrics of the most recent run, if any.
func (s *ProgressionScheduler) Status() *RunMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

// RunNow executes one progression run immediately. It is the exact routine
// the ticker drives, so manual (admin) and automatic progression can never
// diverge. Returns ErrRunInFlight when another run holds the lock.
func (s *ProgressionScheduler) RunNow(ctx context.Context) (*RunMetrics, error) {
	lock, err := s.Locker.TryObtain(ctx, progressionLockKey, s.Cfg.RunBudget+lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			return nil, ErrRunInFlight
		}
		return nil, &TransientStoreError{Op: "acquire scheduler run lock", Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("failed to release scheduler run lock", zap.Error(err))
		}
	}()

	runID := uuid.New().String()
	ctx = WithSchedulerRun(ctx, runID)
	now := s.Clock.Now()
	deadline := now.Add(s.Cfg.RunBudget)
	metrics := &RunMetrics{RunID: runID, StartedAt: now}

	s.expireRequested(ctx, now, deadline, metrics)
	if !s.pastBudget(deadline, metrics) {
		s.progressConfirmed(ctx, now, deadline, metrics)
	}

	metrics.Duration = s.Clock.Now().Sub(now)
	metrics.Degraded = metrics.Errors > 0

	s.mu.Lock()
	s.last = metrics
	s.mu.Unlock()

	s.Logger.Info("progression run finished",
		zap.String("runID", runID),
		zap.Int("expired", metrics.Expired),
		zap.Int("completed", metrics.Completed),
		zap.Int("noShows", metrics.NoShows),
		zap.Int("skipped", metrics.Skipped),
		zap.Int("errors", metrics.Errors),
		zap.Duration("duration", metrics.Duration))
	return metrics, nil
}

// expireRequested cancels requested reservations whose confirmation window
// has lapsed. The store scan uses the smallest configured expiry as cutoff;
// the per-service window is applied here.
func (s *ProgressionScheduler) expireRequested(ctx context.Context, now, deadline time.Time, m *RunMetrics) {
	cutoff := now.Add(-s.Grace.Min(GraceConfirmationExpiry))
	candidates, err := s.findWithRetry(ctx, m, func() ([]models.Reservation, error) {
		return s.Repo.FindRequestedCreatedBefore(ctx, cutoff, s.Cfg.BatchSize)
	})
	if err != nil {
		s.Logger.Error("expiry scan failed", zap.Error(err))
		m.Errors++
		return
	}

	for _, r := range candidates {
		if s.pastBudget(deadline, m) {
			return
		}
		expiry := s.Grace.For(r.ServiceType, GraceConfirmationExpiry)
		if now.Sub(r.CreatedAt) <= expiry {
			continue
		}
		if s.attempt(ctx, r.ID, models.StatusCancelledByShop, "confirmation window expired", m) {
			m.Expired++
		}
	}
}

// progressConfirmed completes confirmed reservations past their completion
// grace and records no-shows for customers who never checked in. Completion
// is checked first: once the whole window plus grace has passed, the service
// is considered rendered.
func (s *ProgressionScheduler) progressConfirmed(ctx context.Context, now, deadline time.Time, m *RunMetrics) {
	today := now.In(s.Clock.Location()).Format("2006-01-02")
	candidates, err := s.findWithRetry(ctx, m, func() ([]models.Reservation, error) {
		return s.Repo.FindConfirmedByDateUpTo(ctx, today, s.Cfg.BatchSize)
	})
	if err != nil {
		s.Logger.Error("confirmed scan failed", zap.Error(err))
		m.Errors++
		return
	}

	for _, r := range candidates {
		if s.pastBudget(deadline, m) {
			return
		}
		startAt, err := r.Window.StartAt(s.Clock.Location())
		if err != nil {
			s.Logger.Warn("skipping reservation with unparseable window",
				zap.String("reservationID", r.ID), zap.Error(err))
			m.Skipped++
			continue
		}
		endAt, _ := r.Window.EndAt(s.Clock.Location())

		switch {
		case now.After(endAt.Add(s.Grace.For(r.ServiceType, GraceCompletion))):
			if s.attempt(ctx, r.ID, models.StatusCompleted, "completion grace elapsed", m) {
				m.Completed++
			}
		case r.CheckedInAt == nil && now.After(startAt.Add(s.Grace.For(r.ServiceType, GraceNoShow))):
			if s.attempt(ctx, r.ID, models.StatusNoShow, "no check-in within no-show grace", m) {
				m.NoShows++
			}
		}
	}
}

// attempt runs one transition with bounded retries on transient store
// errors. A lost race (already transitioned elsewhere) is not an error;
// the candidate is simply skipped.
func (s *ProgressionScheduler) attempt(ctx context.Context, id string, to models.ReservationStatus, reason string, m *RunMetrics) bool {
	var lastErr error
	for retry := 0; retry <= s.Cfg.MaxRetries; retry++ {
		if retry > 0 {
			time.Sleep(s.Cfg.RetryDelay * (1 << (retry - 1)))
		}
		_, err := s.Engine.Transition(ctx, id, to, models.ActorSystem, reason)
		if err == nil {
			return true
		}

		var invalid *InvalidTransitionError
		var concurrent *ConcurrentModificationError
		if errors.As(err, &invalid) || errors.As(err, &concurrent) {
			s.Logger.Debug("progression candidate already handled elsewhere",
				zap.String("reservationID", id), zap.String("target", string(to)), zap.Error(err))
			m.Skipped++
			return false
		}

		var transient *TransientStoreError
		if !errors.As(err, &transient) {
			s.Logger.Error("progression transition failed",
				zap.String("reservationID", id), zap.String("target", string(to)), zap.Error(err))
			m.Errors++
			return false
		}
		lastErr = err
	}

	// Exhausted retries; the candidate stays due and the next run retries it.
	s.Logger.Warn("progression transition degraded after retries",
		zap.String("reservationID", id), zap.String("target", string(to)), zap.Error(lastErr))
	m.Errors++
	return false
}

// findWithRetry applies the transient-error retry policy to a scan query.
func (s *ProgressionScheduler) findWithRetry(ctx context.Context, m *RunMetrics, find func() ([]models.Reservation, error)) ([]models.Reservation, error) {
	var lastErr error
	for retry := 0; retry <= s.Cfg.MaxRetries; retry++ {
		if retry > 0 {
			time.Sleep(s.Cfg.RetryDelay * (1 << (retry - 1)))
		}
		out, err := find()
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *ProgressionScheduler) pastBudget(deadline time.Time, m *RunMetrics) bool {
	if s.Clock.Now().After(deadline) {
		if !m.BudgetHit {
			m.BudgetHit = true
			s.Logger.Warn("progression run stopped at budget; remaining candidates resume next cycle",
				zap.String("runID", m.RunID))
		}
		return true
	}
	return false
}
