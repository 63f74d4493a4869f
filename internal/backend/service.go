package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"logsite/internal/ftpsource"
	"logsite/internal/listingcache"
	"logsite/internal/logging"
	"logsite/internal/logparse"
	"logsite/internal/logstore"
	"logsite/internal/services"
	"logsite/internal/sites"
	"logsite/internal/sitestore"
)

// Service serves the collaborator contract from local storage and FTP.
type Service struct {
	store    *sitestore.Store
	listings *listingcache.Cache
	logs     *logstore.Store
	dialer   ftpsource.Dialer
	parser   *logparse.Parser
	logger   *slog.Logger
	client   *slog.Logger
	now      func() time.Time
}

var _ sites.Collaborator = (*Service)(nil)

// Dependencies groups the building blocks a Service needs.
type Dependencies struct {
	Store    *sitestore.Store
	Listings *listingcache.Cache
	Logs     *logstore.Store
	Dialer   ftpsource.Dialer
	Parser   *logparse.Parser
	Logger   *slog.Logger
	Clock    func() time.Time
}

// New constructs a Service. Store, Listings, Logs and Dialer are required.
func New(deps Dependencies) (*Service, error) {
	if deps.Store == nil || deps.Listings == nil || deps.Logs == nil || deps.Dialer == nil {
		return nil, errors.New("backend: store, listings, logs and dialer are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	parser := deps.Parser
	if parser == nil {
		parser = logparse.New()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    deps.Store,
		listings: deps.Listings,
		logs:     deps.Logs,
		dialer:   deps.Dialer,
		parser:   parser,
		logger:   logging.NewComponentLogger(logger, "backend"),
		client:   logging.NewComponentLogger(logger, "client"),
		now:      now,
	}, nil
}

// ListConfiguredSites returns the stored site names in ascending order.
func (s *Service) ListConfiguredSites(ctx context.Context) ([]string, error) {
	return s.store.Names(ctx)
}

func (s *Service) GetSiteConfig(ctx context.Context, name string) (sites.SiteConfig, error) {
	return s.store.Get(ctx, name)
}

// SaveSiteConfig validates the transform rules before persisting.
func (s *Service) SaveSiteConfig(ctx context.Context, cfg sites.SiteConfig) error {
	if err := logparse.ValidateRules(cfg.Transforms); err != nil {
		return err
	}
	if err := s.store.Save(ctx, cfg); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("site saved",
		logging.String(logging.FieldEventType, "site_saved"),
		logging.Site(strings.TrimSpace(cfg.Name)),
		logging.Int("transform_count", len(cfg.Transforms)))
	return nil
}

// DeleteSiteConfig removes the site along with its cached listing and
// downloaded copies.
func (s *Service) DeleteSiteConfig(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	var errs []error
	if err := s.listings.Remove(name); err != nil {
		errs = append(errs, err)
	}
	if err := s.logs.RemoveSite(name); err != nil {
		errs = append(errs, err)
	}
	logger := logging.WithContext(ctx, s.logger)
	if err := errors.Join(errs...); err != nil {
		logging.WarnWithContext(logger, "site removed with leftovers", "site_cleanup_incomplete",
			logging.Site(name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the site directory under data_dir by hand"))
		return nil
	}
	logger.Info("site removed", logging.String(logging.FieldEventType, "site_removed"), logging.Site(name))
	return nil
}

// FetchRemoteListing lists the site over FTP. Transport failures are reported
// in the snapshot Error together with the last cached entries.
func (s *Service) FetchRemoteListing(ctx context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return sites.SiteSnapshot{}, services.Wrap(services.ErrValidation, "backend", "listing", "site name is required", nil)
	}
	snap := sites.SiteSnapshot{Name: name, Config: cfg}
	logger := logging.WithContext(ctx, s.logger).With(logging.Site(name))

	entries, err := s.listRemote(ctx, cfg)
	if err != nil {
		if cached, ok := s.listings.Lookup(name); ok {
			snap.Entries = cached.Entries
		}
		snap.Error = err.Error()
		logging.WarnWithContext(logger, "remote listing failed", "listing_failed",
			logging.Error(err),
			logging.Int("cached_files", len(snap.Entries)),
			logging.String(logging.FieldErrorHint, "check the site address and credentials"))
		return snap, nil
	}

	snap.Entries = entries
	if err := s.listings.Store(name, entries, s.now()); err != nil {
		logging.WarnWithContext(logger, "listing cache write failed", "listing_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the local listing stays at the previous refresh"))
	}
	logger.Debug("remote listing refreshed", logging.Int("file_count", len(entries)))
	return snap, nil
}

func (s *Service) listRemote(ctx context.Context, cfg sites.SiteConfig) ([]sites.LogFileEntry, error) {
	session, err := s.dialer.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.List(ctx)
}

// FetchLocalListing returns the cached listing, with Error set when the site
// has never been listed.
func (s *Service) FetchLocalListing(_ context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	name := strings.TrimSpace(cfg.Name)
	snap := sites.SiteSnapshot{Name: name, Config: cfg}
	cached, ok := s.listings.Lookup(name)
	if !ok {
		snap.Error = fmt.Sprintf("no local listing for site %q", name)
		return snap, nil
	}
	snap.Entries = cached.Entries
	return snap, nil
}

// FetchRemoteLog refreshes the local copy of entry and parses it.
func (s *Service) FetchRemoteLog(ctx context.Context, snapshot sites.SiteSnapshot, entry sites.LogFileEntry) (sites.Log, error) {
	cfg := snapshot.Config
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = snapshot.Name
	}
	path, _, err := s.logs.Fetch(ctx, cfg, entry)
	if err != nil {
		return sites.Log{}, err
	}
	return s.parse(ctx, cfg.Name, path, cfg.Transforms)
}

// FetchLocalLog parses the downloaded copy of file, using the stored transform
// rules of site when it is still configured.
func (s *Service) FetchLocalLog(ctx context.Context, site, file string) (sites.Log, error) {
	path, err := s.logs.Local(site, file)
	if err != nil {
		return sites.Log{}, err
	}
	var rules []sites.TransformRule
	if cfg, err := s.store.Get(ctx, site); err == nil {
		rules = cfg.Transforms
	}
	return s.parse(ctx, site, path, rules)
}

func (s *Service) parse(ctx context.Context, site, path string, rules []sites.TransformRule) (sites.Log, error) {
	log, err := s.parser.ParseFile(path, rules)
	if err != nil {
		return sites.Log{}, err
	}
	logging.WithContext(ctx, s.logger).Debug("log parsed",
		logging.Site(site),
		logging.File(log.Name),
		logging.Int("line_count", log.Len()))
	return log, nil
}

// EmitLog records a client diagnostic under the client component.
func (s *Service) EmitLog(ctx context.Context, level, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	logging.WithContext(ctx, s.client).Log(ctx, logging.ParseLevel(level), message)
}
