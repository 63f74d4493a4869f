package logstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"logsite/internal/config"
	"logsite/internal/ftpsource"
	"logsite/internal/logging"
	"logsite/internal/services"
	"logsite/internal/sites"
)

// Action describes how a local copy was brought up to date.
type Action string

const (
	ActionReuse  Action = "reuse"
	ActionAppend Action = "append"
	ActionFull   Action = "full"
)

// Store manages downloaded copies of remote logs.
type Store struct {
	cfg       *config.Config
	dialer    ftpsource.Dialer
	reuse     time.Duration
	appendMin int64
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	files map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to age local copies.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Store rooted at the configured data directory.
func New(cfg *config.Config, dialer ftpsource.Dialer, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		cfg:       cfg,
		dialer:    dialer,
		reuse:     cfg.Transfer.ReuseWindow(),
		appendMin: cfg.Transfer.AppendMinBytes,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "logstore"),
		files:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns where the local copy of file for site lives. File names that
// would escape the site directory are rejected.
func (s *Store) Path(site, file string) (string, error) {
	site = strings.TrimSpace(site)
	if site == "" || strings.ContainsAny(site, `/\`) || site == "." || site == ".." {
		return "", services.Wrap(services.ErrValidation, "logstore", "path", fmt.Sprintf("invalid site name %q", site), nil)
	}
	if file == "" || file != filepath.Base(file) || file == "." || file == ".." {
		return "", services.Wrap(services.ErrValidation, "logstore", "path", fmt.Sprintf("invalid file name %q", file), nil)
	}
	return filepath.Join(s.cfg.SiteLogDir(site), file), nil
}

// Local returns the path of an existing local copy.
func (s *Store) Local(site, file string) (string, error) {
	path, err := s.Path(site, file)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "logstore", "local", fmt.Sprintf("%s/%s has not been downloaded", site, file), nil)
		}
		return "", fmt.Errorf("stat local copy: %w", err)
	}
	return path, nil
}

// Plan decides the refresh action for a local copy of the given size and age.
func (s *Store) Plan(localSize int64, age time.Duration, remoteSize int64) Action {
	if age < s.reuse {
		if localSize >= remoteSize {
			return ActionReuse
		}
		if localSize > s.appendMin {
			return ActionAppend
		}
	}
	return ActionFull
}

// Fetch brings the local copy of entry up to date and returns its path.
func (s *Store) Fetch(ctx context.Context, cfg sites.SiteConfig, entry sites.LogFileEntry) (string, Action, error) {
	path, err := s.Path(cfg.Name, entry.Name)
	if err != nil {
		return "", "", err
	}
	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	var (
		localSize int64
		age       = time.Duration(1<<63 - 1)
	)
	if info, statErr := os.Stat(path); statErr == nil {
		localSize = info.Size()
		age = s.now().Sub(info.ModTime())
	}

	action := s.Plan(localSize, age, entry.Size)
	logger := logging.WithContext(ctx, s.logger).With(logging.Site(cfg.Name), logging.File(entry.Name))
	if action == ActionReuse {
		logger.Debug("local copy is current",
			logging.String("local_size", humanize.IBytes(uint64(localSize))),
			logging.String("remote_size", humanize.IBytes(uint64(max(entry.Size, 0)))))
		return path, action, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("create site log directory: %w", err)
	}
	session, err := s.dialer.Dial(ctx, cfg)
	if err != nil {
		return "", "", err
	}
	defer session.Close()

	started := s.now()
	var written int64
	switch action {
	case ActionAppend:
		written, err = s.appendTail(ctx, session, path, entry.Name, localSize)
	default:
		written, err = s.download(ctx, session, path, entry.Name)
	}
	if err != nil {
		return "", "", err
	}
	logger.Info("log transferred",
		logging.String("action", string(action)),
		logging.String("transferred", humanize.IBytes(uint64(written))),
		logging.Duration("elapsed", s.now().Sub(started)))
	return path, action, nil
}

func (s *Store) appendTail(ctx context.Context, session ftpsource.Session, path, name string, offset int64) (int64, error) {
	local, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open local copy: %w", err)
	}
	defer local.Close()

	remote, err := session.Open(ctx, name, offset)
	if err != nil {
		return 0, err
	}
	defer remote.Close()

	written, err := io.Copy(local, remote)
	if err != nil {
		return written, services.Wrap(services.ErrTransport, "logstore", "append", name, err)
	}
	return written, nil
}

func (s *Store) download(ctx context.Context, session ftpsource.Session, path, name string) (int64, error) {
	remote, err := session.Open(ctx, name, 0)
	if err != nil {
		return 0, err
	}
	defer remote.Close()

	tmpPath := path + ".part"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	written, copyErr := io.Copy(tmp, remote)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return written, services.Wrap(services.ErrTransport, "logstore", "download", name, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("rename temp file: %w", err)
	}
	return written, nil
}

// RemoveSite deletes every downloaded copy for site.
func (s *Store) RemoveSite(site string) error {
	site = strings.TrimSpace(site)
	if site == "" || strings.ContainsAny(site, `/\`) || site == "." || site == ".." {
		return services.Wrap(services.ErrValidation, "logstore", "remove", fmt.Sprintf("invalid site name %q", site), nil)
	}
	if err := os.RemoveAll(filepath.Dir(s.cfg.SiteLogDir(site))); err != nil {
		return fmt.Errorf("remove site logs: %w", err)
	}
	return nil
}

func (s *Store) fileLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.files[path]
	if !ok {
		lock = &sync.Mutex{}
		s.files[path] = lock
	}
	return lock
}
