package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"vidpipe/internal/config"
	"vidpipe/internal/deps"
	"vidpipe/internal/jobs"
	"vidpipe/internal/logging"
	"vidpipe/internal/preflight"
	"vidpipe/internal/queue"
	"vidpipe/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	jobs     *jobs.Service
	registry *prometheus.Registry
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	Dependencies []deps.Status
	Preflight    []preflight.Result
}

// New constructs a daemon with initialized dependencies. registry backs the
// /metrics endpoint; a nil registry gets a private one.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, svc *jobs.Service, registry *prometheus.Registry) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || svc == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and job service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		jobs:     svc,
		registry: registry,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, then launches the
// workflow manager and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidpipe daemon instance is already running")
	}

	if failed := preflight.Failed(preflight.CheckBuckets(ctx, d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}
	if space := preflight.CheckFreeSpace("Processed free space", d.cfg.Paths.ProcessedDir, preflight.MinFreeBytes); !space.Passed {
		logging.WarnWithContext(d.logger, "low free space in processed bucket", "low_disk_space",
			logging.String("detail", space.Detail),
			logging.String(logging.FieldErrorHint, "free space before running transform jobs"),
		)
	}
	for _, missing := range deps.MissingRequired(preflight.CheckSystemDeps(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set the binary path in [ffmpeg]"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("vidpipe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops the API server and background processing, waits for running
// jobs, then releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vidpipe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Handler exposes the API router without binding a listener.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
		Preflight:    preflight.RunAll(ctx, d.cfg),
	}
}
