package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"logsite/internal/fetch"
	"logsite/internal/logging"
	"logsite/internal/sites"
)

// DefaultTick is the scheduler polling interval.
const DefaultTick = 500 * time.Millisecond

// Scheduler periodically starts listing refreshes for stale sites.
type Scheduler struct {
	coord   *fetch.Coordinator
	reg     *sites.Registry
	cadence sites.Cadence
	tick    time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	fetches sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTick overrides the polling interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithCadence overrides the staleness cycles.
func WithCadence(c sites.Cadence) Option {
	return func(s *Scheduler) {
		if c.Normal > 0 && c.Error > 0 {
			s.cadence = c
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a scheduler driving coord.
func New(coord *fetch.Coordinator, opts ...Option) *Scheduler {
	s := &Scheduler{
		coord:   coord,
		reg:     coord.Registry(),
		cadence: sites.DefaultCadence(),
		tick:    DefaultTick,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scheduler")
	return s
}

// Start launches the loop. It fails if the loop is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("refresh scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.loop.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop ends the loop and waits for started fetches to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.loop.Wait()
	s.fetches.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.loop.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every cached site once and starts a listing fetch for each
// due site. It returns the number of fetches started.
func (s *Scheduler) Tick(ctx context.Context) int {
	if s.reg.Len() == 0 {
		return 0
	}
	now := s.reg.Now()
	started := 0
	for _, entry := range s.reg.Entries() {
		if !s.cadence.ListingDue(entry, now) {
			continue
		}
		name := entry.Snapshot.Name
		started++
		s.fetches.Add(1)
		go func() {
			defer s.fetches.Done()
			if _, err := s.coord.FetchListing(ctx, name); err != nil {
				s.logger.Debug("listing refresh skipped", logging.Site(name), logging.Error(err))
			}
		}()
	}
	return started
}

// Wait blocks until fetches started by Tick have returned.
func (s *Scheduler) Wait() {
	s.fetches.Wait()
}
