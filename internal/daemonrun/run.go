// Package daemonrun bootstraps the daemon process: logging, the queue store,
// metrics, notifications, the workflow manager and the HTTP API. Both
// cmd/vidpiped and `vidpipe daemon run` call Run.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
	"vidpipe/internal/deps"
	"vidpipe/internal/jobs"
	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/preflight"
	"vidpipe/internal/queue"
	"vidpipe/internal/storage"
	"vidpipe/internal/workflow"
)

// stalePartialAge is how old a .partial- file must be before startup removes it.
const stalePartialAge = 24 * time.Hour

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until ctx is cancelled or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("vidpipe-%s.log", runID))
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update vidpipe.log link: %v\n", err)
	}
	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "vidpiped.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	notifier := notifications.NewService(cfg, logger)
	defer func() {
		if err := notifications.Close(notifier); err != nil {
			logger.Warn("close notifier", logging.Error(err))
		}
	}()

	buckets := storage.New(cfg)
	if removed := buckets.CleanStalePartials(signalCtx, stalePartialAge, logger); len(removed) > 0 {
		logger.Info("cleaned stale partial files", logging.Int("count", len(removed)))
	}

	manager := workflow.NewManager(cfg, store, buckets, logger,
		workflow.WithNotifier(notifier),
		workflow.WithMetrics(workflow.NewMetrics(registry)),
	)
	svc := jobs.NewService(cfg, store, buckets, logger, manager)

	d, err := daemon.New(cfg, store, logger, manager, svc, registry)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, bucket directories and the daemon lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("vidpipe daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "vidpipe.log")
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

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("auth_enabled", cfg.AuthEnabled()),
		logging.Int("workers", cfg.Workflow.Workers),
	}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		attrs = append(attrs, logging.Int("missing_dependencies", len(missing)))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
