package sites

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"logsite/internal/logging"
	"logsite/internal/services"
)

// FetchState tracks one kind of fetch for one site.
type FetchState struct {
	InFlight      bool      `json:"in_flight"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`
}

// Entry is a point-in-time copy of a cache entry.
type Entry struct {
	Snapshot SiteSnapshot
	Listing  FetchState
	Content  FetchState
}

type cacheEntry struct {
	snapshot SiteSnapshot
	listing  FetchState
	content  FetchState
	// listed is closed once the first listing attempt commits.
	listed     chan struct{}
	listedOnce sync.Once
}

func newCacheEntry(cfg SiteConfig) *cacheEntry {
	return &cacheEntry{
		snapshot: SiteSnapshot{Name: cfg.Name, Config: cfg},
		listed:   make(chan struct{}),
	}
}

func (e *cacheEntry) markListed() {
	e.listedOnce.Do(func() { close(e.listed) })
}

func (e *cacheEntry) copy() Entry {
	snap := e.snapshot
	if len(snap.Entries) > 0 {
		snap.Entries = append([]LogFileEntry(nil), snap.Entries...)
	}
	return Entry{Snapshot: snap, Listing: e.listing, Content: e.content}
}

// Registry is the process-wide site cache. All access goes through its
// methods; the zero value is not usable, construct with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	collab  Collaborator
	entries map[string]*cacheEntry
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source used to stamp fetch attempts.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs an empty cache backed by collab.
func NewRegistry(collab Collaborator, opts ...Option) *Registry {
	r := &Registry{
		collab:  collab,
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "registry")
	return r
}

// Collaborator returns the backing collaborator.
func (r *Registry) Collaborator() Collaborator {
	return r.collab
}

// Now returns the registry clock reading.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Refresh loads the configured site names and each site's config, then merges
// them into the cache. New sites get an entry with no files and zeroed fetch
// state; known sites only have their config replaced. Sites missing from the
// configured list are kept. The full cache is returned sorted by name.
func (r *Registry) Refresh(ctx context.Context) ([]SiteSnapshot, error) {
	names, err := r.collab.ListConfiguredSites(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "registry", "list sites", "", err)
	}
	configs := make([]SiteConfig, 0, len(names))
	for _, name := range names {
		cfg, err := r.collab.GetSiteConfig(ctx, name)
		if err != nil {
			return nil, services.Wrap(services.Marker(err), "registry", "get site config", fmt.Sprintf("site %q", name), err)
		}
		if cfg.Name == "" {
			cfg.Name = name
		}
		configs = append(configs, cfg)
	}

	r.mu.Lock()
	added := 0
	for _, cfg := range configs {
		if entry, ok := r.entries[cfg.Name]; ok {
			entry.snapshot.Config = cfg
			continue
		}
		r.entries[cfg.Name] = newCacheEntry(cfg)
		added++
	}
	r.mu.Unlock()

	if added > 0 {
		r.logger.Debug("sites discovered", logging.Int("added", added), logging.Int("configured", len(configs)))
	}
	return r.Snapshots(), nil
}

// Put merges one config into the cache with the same rules as Refresh.
func (r *Registry) Put(cfg SiteConfig) {
	if cfg.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[cfg.Name]; ok {
		entry.snapshot.Config = cfg
		return
	}
	r.entries[cfg.Name] = newCacheEntry(cfg)
}

// Remove drops a site from the cache. Waiters blocked on its first listing
// are released and observe ErrNotFound.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	r.mu.Unlock()
	if ok {
		entry.markListed()
	}
	return ok
}

// Len returns the number of cached sites.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Names returns the cached site names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Entries returns copies of every cache entry sorted by site name.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.copy())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Snapshot.Name < out[j].Snapshot.Name })
	return out
}

// Entry returns a copy of one cache entry.
func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return entry.copy(), true
}

// Snapshots returns the cached snapshots sorted by site name.
func (r *Registry) Snapshots() []SiteSnapshot {
	entries := r.Entries()
	out := make([]SiteSnapshot, len(entries))
	for i, entry := range entries {
		out[i] = entry.Snapshot
	}
	return out
}

// Snapshot returns the cached snapshot of one site.
func (r *Registry) Snapshot(name string) (SiteSnapshot, bool) {
	entry, ok := r.Entry(name)
	return entry.Snapshot, ok
}

// BeginListing marks a listing fetch in flight and returns the config to fetch
// with. started is false when a listing fetch is already running.
func (r *Registry) BeginListing(name string) (cfg SiteConfig, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return SiteConfig{}, false, notFound("begin listing", name)
	}
	if entry.listing.InFlight {
		return entry.snapshot.Config, false, nil
	}
	entry.listing.InFlight = true
	return entry.snapshot.Config, true, nil
}

// CommitListing stores the result of a listing fetch, stamps the attempt time
// and clears the in-flight flag. The entry keeps its current config so a
// config merged during the fetch is not reverted. Results for removed sites
// are dropped.
func (r *Registry) CommitListing(name string, snapshot SiteSnapshot) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	snapshot.Name = name
	snapshot.Config = entry.snapshot.Config
	entry.snapshot = snapshot
	entry.listing.InFlight = false
	entry.listing.LastAttemptAt = r.now()
	r.mu.Unlock()
	entry.markListed()
}

// WaitListing blocks until the site has completed at least one listing
// attempt and returns its snapshot.
func (r *Registry) WaitListing(ctx context.Context, name string) (SiteSnapshot, error) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return SiteSnapshot{}, notFound("await listing", name)
	}
	select {
	case <-entry.listed:
	case <-ctx.Done():
		return SiteSnapshot{}, services.Wrap(services.ErrTimeout, "registry", "await listing", fmt.Sprintf("site %q", name), ctx.Err())
	}
	snap, ok := r.Snapshot(name)
	if !ok {
		return SiteSnapshot{}, notFound("await listing", name)
	}
	return snap, nil
}

// BeginContent marks a content fetch in flight and returns the snapshot the
// fetch resolves files against.
func (r *Registry) BeginContent(name string) (SiteSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return SiteSnapshot{}, notFound("begin content", name)
	}
	entry.content.InFlight = true
	return entry.copy().Snapshot, nil
}

// EndContent clears the content in-flight flag and stamps the attempt time.
func (r *Registry) EndContent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[name]; ok {
		entry.content.InFlight = false
		entry.content.LastAttemptAt = r.now()
	}
}

func notFound(operation, name string) error {
	return services.Wrap(services.ErrNotFound, "registry", operation, fmt.Sprintf("site %q", name), nil)
}
