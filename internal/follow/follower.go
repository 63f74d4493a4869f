package follow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"logsite/internal/fetch"
	"logsite/internal/linefilter"
	"logsite/internal/logging"
	"logsite/internal/logwindow"
	"logsite/internal/sites"
)

const (
	// DefaultPoll is the interval between poll checks.
	DefaultPoll = time.Second
	// DefaultCycle is the minimum age of the last download before the next.
	DefaultCycle = 40 * time.Second
)

// Source tells where the shown content came from.
type Source string

const (
	SourceNone   Source = ""
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// View is what a viewer renders for the open file.
type View struct {
	Site      string
	File      string
	Lines     []sites.LogLine
	Total     int
	Hidden    int
	Cursor    int64
	HasMore   bool
	Source    Source
	FetchedAt time.Time
	Filters   linefilter.Set
}

// Event is delivered for every applied result and every failed fetch.
type Event struct {
	View View
	Err  error
}

// Follower tracks one open file.
type Follower struct {
	coord  *fetch.Coordinator
	site   string
	file   string
	poll   time.Duration
	cycle  time.Duration
	now    func() time.Time
	logger *slog.Logger
	events chan Event

	mu          sync.Mutex
	window      *logwindow.Window
	filters     linefilter.Set
	fetching    bool
	lastFetched time.Time
	lastFailed  time.Time
	source      Source
}

// Option customizes a Follower.
type Option func(*Follower)

// WithPolling overrides the poll tick and the content cycle.
func WithPolling(poll, cycle time.Duration) Option {
	return func(f *Follower) {
		if poll > 0 {
			f.poll = poll
		}
		if cycle > 0 {
			f.cycle = cycle
		}
	}
}

// WithWindow overrides the window limits.
func WithWindow(max, increment int) Option {
	return func(f *Follower) {
		f.window = logwindow.New(max, increment)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Follower) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLogger sets the follower logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Follower) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New returns a follower for site/file.
func New(coord *fetch.Coordinator, site, file string, opts ...Option) *Follower {
	f := &Follower{
		coord:  coord,
		site:   site,
		file:   file,
		poll:   DefaultPoll,
		cycle:  DefaultCycle,
		now:    time.Now,
		logger: logging.NewNop(),
		events: make(chan Event, 16),
		window: logwindow.New(logwindow.MaxWindow, logwindow.MoreIncrement),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "follow").With(logging.Site(site), logging.File(file))
	return f
}

// Events returns the channel of applied results and failures. It is closed
// when Run returns.
func (f *Follower) Events() <-chan Event {
	return f.events
}

// Run loads the local copy, makes sure the site has a listing, then polls
// until ctx ends.
func (f *Follower) Run(ctx context.Context) error {
	defer close(f.events)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.LoadLocal(ctx)
	}()
	defer wg.Wait()

	if err := f.ensureListing(ctx); err != nil {
		f.publish(ctx, Event{View: f.View(), Err: err})
		return err
	}

	f.Poll(ctx)
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

func (f *Follower) ensureListing(ctx context.Context) error {
	entry, ok := f.coord.Registry().Entry(f.site)
	if ok && entry.Listing.LastAttemptAt.IsZero() && !entry.Listing.InFlight {
		if _, err := f.coord.FetchListing(ctx, f.site); err != nil {
			return err
		}
	}
	_, err := f.coord.AwaitListing(ctx, f.site)
	return err
}

// LoadLocal applies the locally cached copy unless a remote result was
// already applied or landed while it was read.
func (f *Follower) LoadLocal(ctx context.Context) {
	log, fresh, err := f.coord.FetchLocalFallback(ctx, f.site, f.file)
	if err != nil {
		f.logger.Debug("no local copy", logging.Error(err))
		return
	}
	if !fresh {
		f.logger.Debug("ignoring local copy, newer content already fetched")
		return
	}
	f.apply(ctx, log, SourceLocal)
}

// Poll runs one poll step and reports whether a download was attempted.
func (f *Follower) Poll(ctx context.Context) bool {
	f.mu.Lock()
	now := f.now()
	if f.fetching || now.Sub(f.lastFetched) < f.cycle || now.Sub(f.lastFailed) < f.cycle {
		f.mu.Unlock()
		return false
	}
	f.fetching = true
	f.mu.Unlock()

	log, err := f.coord.FetchContent(ctx, f.site, f.file)

	f.mu.Lock()
	f.fetching = false
	if err != nil {
		f.lastFailed = f.now()
	} else {
		f.lastFetched = f.now()
		f.lastFailed = time.Time{}
	}
	f.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("content fetch failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "content_fetch_failed"),
				logging.String(logging.FieldErrorHint, "the file will be retried on the next cycle"),
			)
			f.publish(ctx, Event{View: f.View(), Err: err})
		}
		return true
	}
	f.apply(ctx, log, SourceRemote)
	return true
}

// Refresh clears the content cycle so the next Poll downloads.
func (f *Follower) Refresh() {
	f.mu.Lock()
	f.lastFetched = time.Time{}
	f.lastFailed = time.Time{}
	f.mu.Unlock()
}

func (f *Follower) apply(ctx context.Context, log sites.Log, source Source) {
	f.mu.Lock()
	if source == SourceLocal && !f.lastFetched.IsZero() {
		f.mu.Unlock()
		return
	}
	changed := f.window.Update(log)
	f.source = source
	view := f.viewLocked()
	f.mu.Unlock()

	if !changed {
		return
	}
	f.logger.Debug("content applied",
		logging.String("source", string(source)),
		logging.Int("lines", log.Len()),
		logging.Int("visible", len(view.Lines)),
	)
	f.publish(ctx, Event{View: view})
}

func (f *Follower) publish(ctx context.Context, evt Event) {
	select {
	case f.events <- evt:
	case <-ctx.Done():
	}
}

// ShowMore reveals older lines and returns the new view.
func (f *Follower) ShowMore() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window.ShowMore()
	return f.viewLocked()
}

// SetFilters replaces the include and exclude patterns and returns the new
// view.
func (f *Follower) SetFilters(include, exclude string) View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = linefilter.NewSet(include, exclude)
	return f.viewLocked()
}

// View returns the current view.
func (f *Follower) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Follower) viewLocked() View {
	return View{
		Site:      f.site,
		File:      f.file,
		Lines:     f.filters.Apply(f.window.Lines()),
		Total:     f.window.Log().Len(),
		Hidden:    f.window.Hidden(),
		Cursor:    f.window.Cursor(),
		HasMore:   f.window.HasMore(),
		Source:    f.source,
		FetchedAt: f.lastFetched,
		Filters:   f.filters,
	}
}
