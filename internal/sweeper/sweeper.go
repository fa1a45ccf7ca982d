package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/redis"
)

const lockKey = "sweeper"

// DueLister lists accounts with a time-based transition due at now.
type DueLister interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Reconciler applies the due transition for one account.
type Reconciler interface {
	Reconcile(ctx context.Context, id uuid.UUID) (lifecycle.ReconcileResult, error)
}

// Stats summarizes one sweep.
type Stats struct {
	Due            int
	Transitioned   int
	RenewalsFailed int
	Errors         int
}

// Sweeper reconciles due accounts in the background so transitions land even
// when the account owner never signs in.
type Sweeper struct {
	accounts   DueLister
	reconciler Reconciler
	locker     Locker
	interval   time.Duration
	batchSize  int
	lockTTL    time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func New(accounts DueLister, reconciler Reconciler, locker Locker, opts ...Option) *Sweeper {
	if accounts == nil || reconciler == nil || locker == nil {
		panic("sweeper: nil dependency")
	}
	s := &Sweeper{
		accounts:   accounts,
		reconciler: reconciler,
		locker:     locker,
		interval:   5 * time.Minute,
		batchSize:  100,
		lockTTL:    4 * time.Minute,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sweeper shutting down", logger.Component("sweeper"))
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	start := time.Now()
	stats, err := s.Sweep(ctx)
	switch {
	case errors.Is(err, redis.ErrLockNotAcquired):
		s.log.DebugContext(ctx, "sweep skipped, lock held elsewhere", logger.Component("sweeper"))
	case err != nil:
		s.log.ErrorContext(ctx, "sweep failed", logger.Component("sweeper"), logger.Error(err))
	case stats.Due > 0:
		s.log.InfoContext(ctx, "sweep finished",
			logger.Component("sweeper"),
			slog.Int("due", stats.Due),
			slog.Int("transitioned", stats.Transitioned),
			slog.Int("renewals_failed", stats.RenewalsFailed),
			slog.Int("errors", stats.Errors),
			logger.Duration(time.Since(start)),
		)
	}
}

// Sweep reconciles one batch of due accounts under the shared lease.
// Per-account failures are logged and counted; they do not stop the batch.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	unlock, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.WarnContext(ctx, "release sweeper lock", logger.Component("sweeper"), logger.Error(err))
		}
	}()

	ids, err := s.accounts.ListDue(ctx, s.now(), s.batchSize)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Due: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		res, err := s.reconciler.Reconcile(ctx, id)
		switch {
		case err != nil:
			stats.Errors++
			s.log.ErrorContext(ctx, "reconcile due account",
				logger.Component("sweeper"),
				logger.AccountID(id),
				logger.Error(err),
			)
		case res.RenewalErr != nil:
			stats.RenewalsFailed++
		case res.Transitioned():
			stats.Transitioned++
		}
	}
	return stats, nil
}
