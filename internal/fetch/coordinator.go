package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"logsite/internal/logging"
	"logsite/internal/services"
	"logsite/internal/sites"
)

// Coordinator issues collaborator fetches on behalf of the registry.
type Coordinator struct {
	reg    *sites.Registry
	collab sites.Collaborator
	logger *slog.Logger

	gate chan struct{}

	mu          sync.Mutex
	generations map[string]uint64
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a coordinator for the registry's collaborator.
func New(reg *sites.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:         reg,
		collab:      reg.Collaborator(),
		logger:      logging.NewNop(),
		gate:        make(chan struct{}, 1),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "fetch")
	return c
}

// Registry returns the registry the coordinator updates.
func (c *Coordinator) Registry() *sites.Registry {
	return c.reg
}

// FetchListing refreshes the file listing of one site. It returns false
// without side effects when a listing fetch for the site is already in flight.
// Collaborator failures end up in the stored snapshot's Error with the
// previous entries kept; only an unknown site is reported as an error.
func (c *Coordinator) FetchListing(ctx context.Context, name string) (bool, error) {
	cfg, started, err := c.reg.BeginListing(name)
	if err != nil {
		return false, err
	}
	if !started {
		return false, nil
	}

	logger := c.logger.With(logging.Site(name))
	start := time.Now()
	snapshot, err := c.collab.FetchRemoteListing(ctx, cfg)
	if err != nil {
		previous, _ := c.reg.Snapshot(name)
		snapshot = sites.SiteSnapshot{Entries: previous.Entries, Error: err.Error()}
	}
	c.reg.CommitListing(name, snapshot)

	if snapshot.HasError() {
		logging.WarnWithContext(logger, "listing refresh failed", "listing_failed",
			logging.String("error", snapshot.Error),
			logging.String(logging.FieldImpact, "showing previous listing"),
			logging.String(logging.FieldErrorHint, "check site address and credentials"),
		)
	} else {
		logger.Debug("listing refreshed",
			logging.Int("entries", len(snapshot.Entries)),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
	return true, nil
}

// AwaitListing blocks until the site has at least one completed listing
// attempt and returns its snapshot.
func (c *Coordinator) AwaitListing(ctx context.Context, name string) (sites.SiteSnapshot, error) {
	return c.reg.WaitListing(ctx, name)
}

// FetchContent downloads one file through the global content gate. Unknown
// sites or files fail with ErrNotFound before the gate is taken. The gate is
// released on every path.
func (c *Coordinator) FetchContent(ctx context.Context, site, file string) (sites.Log, error) {
	if err := c.checkListed(site, file); err != nil {
		return sites.Log{}, err
	}

	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return sites.Log{}, services.Wrap(services.ErrTimeout, "fetch", "content", describe(site, file), ctx.Err())
	}
	defer func() { <-c.gate }()

	snapshot, err := c.reg.BeginContent(site)
	if err != nil {
		return sites.Log{}, err
	}
	defer c.reg.EndContent(site)

	entry, ok := snapshot.Lookup(file)
	if !ok {
		return sites.Log{}, fileNotFound(site, file)
	}

	start := time.Now()
	log, err := c.collab.FetchRemoteLog(ctx, snapshot, entry)
	if err != nil {
		marker := services.Marker(err)
		if marker == nil {
			marker = services.ErrTransport
		}
		return sites.Log{}, services.Wrap(marker, "fetch", "content", describe(site, file), err)
	}
	c.bump(site, file)

	c.logger.Debug("content fetched",
		logging.Site(site),
		logging.File(file),
		logging.Int("lines", log.Len()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return log, nil
}

// FetchLocalFallback reads the locally cached copy of a file. fresh is false
// when a remote fetch of the same file landed while the read ran; callers must
// then ignore the result.
func (c *Coordinator) FetchLocalFallback(ctx context.Context, site, file string) (log sites.Log, fresh bool, err error) {
	if _, ok := c.reg.Snapshot(site); !ok {
		return sites.Log{}, false, siteNotFound(site)
	}
	token := c.Generation(site, file)
	log, err = c.collab.FetchLocalLog(ctx, site, file)
	if err != nil {
		return sites.Log{}, false, services.Wrap(services.Marker(err), "fetch", "local fallback", describe(site, file), err)
	}
	if c.Generation(site, file) != token {
		c.logger.Debug("discarding stale local copy", logging.Site(site), logging.File(file))
		return log, false, nil
	}
	return log, true, nil
}

// Generation returns the number of successful remote fetches of a file.
func (c *Coordinator) Generation(site, file string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key(site, file)]
}

func (c *Coordinator) bump(site, file string) {
	c.mu.Lock()
	c.generations[key(site, file)]++
	c.mu.Unlock()
}

func (c *Coordinator) checkListed(site, file string) error {
	snapshot, ok := c.reg.Snapshot(site)
	if !ok {
		return siteNotFound(site)
	}
	if _, ok := snapshot.Lookup(file); !ok {
		return fileNotFound(site, file)
	}
	return nil
}

func key(site, file string) string {
	return site + "\x00" + file
}

func describe(site, file string) string {
	return fmt.Sprintf("site %q file %q", site, file)
}

func siteNotFound(site string) error {
	return services.Wrap(services.ErrNotFound, "fetch", "lookup", fmt.Sprintf("site %q", site), nil)
}

func fileNotFound(site, file string) error {
	return services.Wrap(services.ErrNotFound, "fetch", "lookup", describe(site, file), nil)
}
