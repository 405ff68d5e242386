package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"

	"github.com/gofrs/flock"
)

// ErrResetInProgress is returned when a trigger fires while another reset is
// already running, in this process or another one holding the file lock.
var ErrResetInProgress = errors.New("reset already in progress")

const defaultCheckInterval = time.Hour

type Marker interface {
	LastResetDate(ctx context.Context) (string, error)
	SetLastResetDate(ctx context.Context, date string) error
}

// Runner executes the archival+clear procedure for one reset.
type Runner interface {
	RunReset(ctx context.Context, resetAt time.Time) error
}

// Scheduler triggers the daily reset at most once per calendar day. Checks
// run at startup, on an hourly cadence, and on a timer aligned to the next
// local midnight; whichever fires first wins and the rest see the updated
// marker. A failed reset leaves the marker untouched so the next check
// retries.
type Scheduler struct {
	marker   Marker
	runner   Runner
	logger   *slog.Logger
	lock     *flock.Flock
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex
}

type Options struct {
	CheckInterval time.Duration
	LockPath      string
}

func New(marker Marker, runner Runner, logger *slog.Logger, opts Options) *Scheduler {
	interval := opts.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	s := &Scheduler{
		marker:   marker,
		runner:   runner,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
	if opts.LockPath != "" {
		s.lock = flock.New(opts.LockPath)
	}
	return s
}

// Run blocks until ctx is canceled, checking at startup, every interval,
// and at each midnight.
func (s *Scheduler) Run(ctx context.Context) {
	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	midnight := time.NewTimer(untilNextMidnight(s.now()))
	defer midnight.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		case <-midnight.C:
			s.check(ctx)
			midnight.Reset(untilNextMidnight(s.now()))
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	if err := s.Check(ctx); err != nil && !errors.Is(err, ErrResetInProgress) {
		s.logger.Error("daily reset failed", "error", err)
	}
}

// Check runs the reset if the stored marker is not today's date.
func (s *Scheduler) Check(ctx context.Context) error {
	today := s.now().Format(models.DateFormat)
	last, err := s.marker.LastResetDate(ctx)
	if err != nil {
		return err
	}
	if last == today {
		return nil
	}
	return s.runReset(ctx)
}

// ManualReset runs the full reset procedure regardless of the marker.
func (s *Scheduler) ManualReset(ctx context.Context) error {
	return s.runReset(ctx)
}

func (s *Scheduler) runReset(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrResetInProgress
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return err
		}
		if !ok {
			return ErrResetInProgress
		}
		defer func() {
			_ = s.lock.Unlock()
		}()
	}

	// One instant drives the run, the archive's date_served, the analytics
	// day, and the marker, so a reset straddling midnight cannot record one
	// day and archive another.
	resetAt := s.now()
	if err := s.runner.RunReset(ctx, resetAt); err != nil {
		return err
	}

	date := resetAt.Format(models.DateFormat)
	if err := s.marker.SetLastResetDate(ctx, date); err != nil {
		return err
	}
	s.logger.Info("daily reset completed", "date", date)
	return nil
}

func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}
