package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the sweeper evicts idle sessions.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// SweeperOption configures the sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the sweep interval.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = interval }
}

// WithSweepLogger sets a custom logger.
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		interval: DefaultSweepInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins periodic sweeping. Calling Start on a running sweeper is a
// no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx)
}

// Stop halts sweeping and waits for the sweep goroutine to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.SweepExpired(); removed > 0 {
				s.logger.Debug("swept idle sessions", "removed", removed)
			}
		}
	}
}
