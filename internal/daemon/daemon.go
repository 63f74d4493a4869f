package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"logsite/internal/backend"
	"logsite/internal/config"
	"logsite/internal/ftpsource"
	"logsite/internal/listingcache"
	"logsite/internal/logging"
	"logsite/internal/logparse"
	"logsite/internal/logstore"
	"logsite/internal/sitestore"
)

// Daemon owns the backend and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sitestore.Store
	backend *backend.Service
	hub     *logging.StreamHub
	logPath string

	lockPath string
	lock     *flock.Flock

	sessionID string
	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool
	PID        int
	SessionID  string
	StartedAt  time.Time
	Sites      int
	LockPath   string
	DBPath     string
	DataDir    string
	LogPath    string
	SocketPath string
}

// New constructs a daemon around an assembled backend. The hub may be nil.
func New(cfg *config.Config, store *sitestore.Store, svc *backend.Service, logger *slog.Logger, hub *logging.StreamHub) (*Daemon, error) {
	if cfg == nil || store == nil || svc == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, backend, and logger")
	}
	sessionID := uuid.NewString()
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldSessionID, sessionID)),
		store:     store,
		backend:   svc,
		hub:       hub,
		logPath:   filepath.Join(cfg.Paths.LogDir, "logsite.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		sessionID: sessionID,
		shutdown:  make(chan struct{}),
	}, nil
}

// Assemble opens the site store and builds the backend over the given FTP
// dialer. A nil dialer uses the configured FTP transport.
func Assemble(cfg *config.Config, logger *slog.Logger, hub *logging.StreamHub, dialer ftpsource.Dialer) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := sitestore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open site store: %w", err)
	}
	if dialer == nil {
		dialer = ftpsource.New(ftpsource.Options{
			Port:        cfg.Transfer.Port,
			Timeout:     cfg.Transfer.DialTimeout(),
			InsecureTLS: cfg.Transfer.InsecureTLS,
			Logger:      logger,
		})
	}
	svc, err := backend.New(backend.Dependencies{
		Store:    store,
		Listings: listingcache.NewCache(cfg.ListingCachePath(), logger),
		Logs:     logstore.New(cfg, dialer, logger),
		Dialer:   dialer,
		Parser:   logparse.New(),
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	d, err := New(cfg, store, svc, logger, hub)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

// Start acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another logsite daemon instance is already running")
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("logsite daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("data_dir", d.cfg.Paths.DataDir))
	return nil
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	d.mu.Unlock()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"))
	}
	d.running.Store(false)
	d.logger.Info("logsite daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown asks the hosting process to exit. Safe to call repeatedly.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() {
		d.logger.Info("daemon shutdown requested", logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
		close(d.shutdown)
	})
}

// ShutdownRequested is closed once RequestShutdown has been called.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// Backend returns the collaborator implementation served over IPC.
func (d *Daemon) Backend() *backend.Service {
	return d.backend
}

// Hub returns the log stream hub, which may be nil.
func (d *Daemon) Hub() *logging.StreamHub {
	return d.hub
}

// Logger returns the session-scoped daemon logger.
func (d *Daemon) Logger() *slog.Logger {
	return d.logger
}

// SessionID identifies this daemon run.
func (d *Daemon) SessionID() string {
	return d.sessionID
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		SessionID:  d.sessionID,
		StartedAt:  startedAt,
		LockPath:   d.lockPath,
		DBPath:     d.store.Path(),
		DataDir:    d.cfg.Paths.DataDir,
		LogPath:    d.logPath,
		SocketPath: d.cfg.SocketPath(),
	}
	if names, err := d.store.Names(ctx); err == nil {
		status.Sites = len(names)
	}
	return status
}
