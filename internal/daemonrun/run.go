package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"logsite/internal/config"
	"logsite/internal/daemon"
	"logsite/internal/daemonctl"
	"logsite/internal/ftpsource"
	"logsite/internal/ipc"
	"logsite/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
	Diagnostic bool
	// Stdout mirrors daemon logs to the process stdout/stderr.
	Stdout bool
	// Dialer overrides the FTP transport; nil uses the configured one.
	Dialer ftpsource.Dialer
}

// Run hosts the collaborator backend on the IPC socket until the context is
// cancelled, a signal arrives, or a client asks the daemon to stop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("logsite-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{logPath}
	errOutputs := []string{logPath}
	if opts.Stdout {
		outputs = append([]string{"stdout"}, outputs...)
		errOutputs = append([]string{"stderr"}, errOutputs...)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errOutputs,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var debugLogPath string
	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("logsite-%s.log", runID))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/logsite.log link: %v\n", err)
			}
		}
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update logsite.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "logsite-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "logsite-*.log", Exclude: []string{debugLogPath}},
	)

	d, err := daemon.Assemble(cfg, logger, logHub, opts.Dialer)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running logsite daemon"),
		)
		return err
	}

	pidPath := cfg.PIDPath()
	if err := daemonctl.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logRuntimeSnapshot(d.Logger(), cfg, socketPath, debugLogPath)

	select {
	case <-signalCtx.Done():
	case <-d.ShutdownRequested():
	}
	d.Logger().Info("logsite daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "logsite.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logRuntimeSnapshot(logger *slog.Logger, cfg *config.Config, socketPath, debugLogPath string) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "runtime_snapshot"),
		logging.String("socket", socketPath),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.Int("ftp_port", cfg.Transfer.Port),
		logging.Bool("insecure_tls", cfg.Transfer.InsecureTLS),
		logging.Duration("reuse_window", cfg.Transfer.ReuseWindow()),
	}
	if debugLogPath != "" {
		attrs = append(attrs, logging.String("debug_log_path", debugLogPath))
	}
	logger.Info("runtime snapshot", logging.Args(attrs...)...)
}
