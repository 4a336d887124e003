// Package retention reclaims stored blobs of file items whose admission
// window has closed. Item rows are kept; only the blob and the reference
// to it go away.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/linkvault/internal/blob"
	"github.com/atinyakov/linkvault/internal/metrics"
	"github.com/atinyakov/linkvault/internal/models"
	"go.uber.org/zap"
)

// DefaultInterval is the sweep period used when none is configured.
const DefaultInterval = time.Minute

// DefaultStorageTimeout bounds each repository and blob store call of a sweep.
const DefaultStorageTimeout = 10 * time.Second

// Repository defines the persistence operations required by the sweeper.
type Repository interface {
	ListReclaimable(ctx context.Context, now time.Time) ([]models.ReclaimRef, error)
	ClearContent(ctx context.Context, id string) error
}

// Config holds the sweeper dependencies. Zero values for Interval,
// StorageTimeout, Now and Logger select the defaults.
type Config struct {
	Repo           Repository
	Blobs          blob.Store
	Interval       time.Duration
	StorageTimeout time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Sweeper periodically reclaims blobs on a single goroutine.
type Sweeper struct {
	repo     Repository
	blobs    blob.Store
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Sweeper from cfg.
func New(cfg Config) *Sweeper {
	s := &Sweeper{
		repo:     cfg.Repo,
		blobs:    cfg.Blobs,
		interval: cfg.Interval,
		timeout:  cfg.StorageTimeout,
		now:      cfg.Now,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStorageTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Start launches the sweep loop. It returns immediately; calling Start on
// a running sweeper is a no-op. The loop ends when ctx is cancelled or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	ticker := time.NewTicker(s.interval)
	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}(s.done)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs a single sweep and returns how many blobs were
// reclaimed and how many items failed. Failures of one item never stop
// the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (reclaimed, failed int) {
	start := time.Now()
	defer func() { s.metrics.Swept(reclaimed, failed, time.Since(start)) }()

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	refs, err := s.repo.ListReclaimable(lctx, s.now())
	cancel()
	if err != nil {
		s.log.Error("failed to list reclaimable items", zap.Error(err))
		return 0, 0
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		if err := s.reclaim(ctx, ref); err != nil {
			failed++
			s.log.Error("failed to reclaim blob",
				zap.String("id", ref.ID),
				zap.String("key", ref.StorageKey),
				zap.Error(err),
			)
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 || failed > 0 {
		s.log.Info("retention sweep finished",
			zap.Int("reclaimed", reclaimed),
			zap.Int("failed", failed),
		)
	}
	return reclaimed, failed
}

// reclaim deletes the blob first and clears the reference only once the
// blob is known to be gone. A failed delete leaves the row untouched so the
// next sweep retries it. Each storage call gets its own timeout.
func (s *Sweeper) reclaim(ctx context.Context, ref models.ReclaimRef) error {
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.blobs.Delete(dctx, ref.StorageKey)
	cancel()
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.ClearContent(cctx, ref.ID)
}
