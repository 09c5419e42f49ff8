package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/queue"
	"vidpipe/internal/storage"
)

// Manager coordinates the dispatcher and worker pool.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	metrics      *Metrics
	exec         *executor
	pollInterval time.Duration
	workers      int
	queueSize    int

	wake chan struct{}

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	queued   chan int64
	inFlight map[int64]struct{}
	lastErr  error
	lastJob  *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier sets the terminal-state notifier.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithMetrics records job metrics on the given collectors.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager constructs a workflow manager. Without options no
// notifications are sent and no metrics are recorded.
func NewManager(cfg *config.Config, store *queue.Store, buckets *storage.Buckets, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifications.NewNoop(),
		pollInterval: pollInterval,
		workers:      max(cfg.Workflow.Workers, 1),
		queueSize:    max(cfg.Workflow.QueueSize, 1),
		wake:         make(chan struct{}, 1),
		inFlight:     make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.exec = newExecutor(cfg, store, buckets)
	return m
}

// Notify wakes the dispatcher without waiting for the next poll. It never
// blocks.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
