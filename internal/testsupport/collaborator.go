package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"logsite/internal/services"
	"logsite/internal/sites"
)

// EmittedLog records one EmitLog call.
type EmittedLog struct {
	Level   string
	Message string
}

// FakeCollaborator is an in-memory sites.Collaborator. Hooks, when set,
// replace the default behavior of the matching fetch call.
type FakeCollaborator struct {
	mu sync.Mutex

	configs   map[string]sites.SiteConfig
	listings  map[string]sites.SiteSnapshot
	remote    map[string]sites.Log
	local     map[string]sites.Log
	emitted   []EmittedLog
	calls     map[string]int
	ListErr   error
	ListingFn func(ctx context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error)
	RemoteFn  func(ctx context.Context, snap sites.SiteSnapshot, entry sites.LogFileEntry) (sites.Log, error)
	LocalFn   func(ctx context.Context, site, file string) (sites.Log, error)
}

// NewFakeCollaborator returns a collaborator seeded with configs.
func NewFakeCollaborator(configs ...sites.SiteConfig) *FakeCollaborator {
	f := &FakeCollaborator{
		configs:  make(map[string]sites.SiteConfig),
		listings: make(map[string]sites.SiteSnapshot),
		remote:   make(map[string]sites.Log),
		local:    make(map[string]sites.Log),
		calls:    make(map[string]int),
	}
	for _, cfg := range configs {
		f.configs[cfg.Name] = cfg
	}
	return f
}

// SetListing fixes the snapshot FetchRemoteListing returns for a site.
func (f *FakeCollaborator) SetListing(site string, entries ...sites.LogFileEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[site] = sites.SiteSnapshot{Name: site, Entries: entries}
}

// SetListingError makes FetchRemoteListing report msg in the snapshot Error.
func (f *FakeCollaborator) SetListingError(site, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[site] = sites.SiteSnapshot{Name: site, Error: msg}
}

// SetRemoteLog fixes the content FetchRemoteLog returns.
func (f *FakeCollaborator) SetRemoteLog(site string, log sites.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote[site+"/"+log.Name] = log
}

// SetLocalLog fixes the content FetchLocalLog returns.
func (f *FakeCollaborator) SetLocalLog(site string, log sites.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local[site+"/"+log.Name] = log
}

// Calls returns how often the named method ran.
func (f *FakeCollaborator) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Emitted returns the diagnostic messages received so far.
func (f *FakeCollaborator) Emitted() []EmittedLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EmittedLog(nil), f.emitted...)
}

func (f *FakeCollaborator) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *FakeCollaborator) ListConfiguredSites(context.Context) ([]string, error) {
	f.count("ListConfiguredSites")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	names := make([]string, 0, len(f.configs))
	for name := range f.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeCollaborator) GetSiteConfig(_ context.Context, name string) (sites.SiteConfig, error) {
	f.count("GetSiteConfig")
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[name]
	if !ok {
		return sites.SiteConfig{}, fmt.Errorf("%w: site %q", services.ErrNotFound, name)
	}
	return cfg, nil
}

func (f *FakeCollaborator) SaveSiteConfig(_ context.Context, cfg sites.SiteConfig) error {
	f.count("SaveSiteConfig")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[cfg.Name] = cfg
	return nil
}

func (f *FakeCollaborator) DeleteSiteConfig(_ context.Context, name string) error {
	f.count("DeleteSiteConfig")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[name]; !ok {
		return fmt.Errorf("%w: site %q", services.ErrNotFound, name)
	}
	delete(f.configs, name)
	return nil
}

func (f *FakeCollaborator) FetchRemoteListing(ctx context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	f.count("FetchRemoteListing")
	if f.ListingFn != nil {
		return f.ListingFn(ctx, cfg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.listings[cfg.Name]
	if !ok {
		return sites.SiteSnapshot{Name: cfg.Name, Config: cfg}, nil
	}
	snap.Config = cfg
	return snap, nil
}

func (f *FakeCollaborator) FetchLocalListing(_ context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	f.count("FetchLocalListing")
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.listings[cfg.Name]
	if !ok {
		return sites.SiteSnapshot{Name: cfg.Name, Config: cfg, Error: "no local listing"}, nil
	}
	snap.Config = cfg
	return snap, nil
}

func (f *FakeCollaborator) FetchRemoteLog(ctx context.Context, snap sites.SiteSnapshot, entry sites.LogFileEntry) (sites.Log, error) {
	f.count("FetchRemoteLog")
	if f.RemoteFn != nil {
		return f.RemoteFn(ctx, snap, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.remote[snap.Name+"/"+entry.Name]
	if !ok {
		return sites.Log{}, fmt.Errorf("%w: remote log %s/%s", services.ErrNotFound, snap.Name, entry.Name)
	}
	return log, nil
}

func (f *FakeCollaborator) FetchLocalLog(ctx context.Context, site, file string) (sites.Log, error) {
	f.count("FetchLocalLog")
	if f.LocalFn != nil {
		return f.LocalFn(ctx, site, file)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.local[site+"/"+file]
	if !ok {
		return sites.Log{}, fmt.Errorf("%w: local log %s/%s", services.ErrNotFound, site, file)
	}
	return log, nil
}

func (f *FakeCollaborator) EmitLog(_ context.Context, level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, EmittedLog{Level: level, Message: message})
}

// Lines builds a log with n lines numbered from firstSeq.
func Lines(name string, firstSeq int64, n int) sites.Log {
	out := sites.Log{Name: name, Lines: make([]sites.LogLine, n)}
	for i := range out.Lines {
		seq := firstSeq + int64(i)
		msg := fmt.Sprintf("line %d", seq)
		out.Lines[i] = sites.LogLine{Seq: seq, Message: msg, Raw: msg}
	}
	return out
}
