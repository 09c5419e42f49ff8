package workflow

import (
	"context"
	"errors"
	"time"

	"vidpipe/internal/logging"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
)

// Start launches the dispatcher and workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.queued = make(chan int64, m.queueSize)
	queued := m.queued
	m.wg.Add(1 + m.workers)
	m.mu.Unlock()

	go m.dispatch(runCtx, queued)
	for slot := 1; slot <= m.workers; slot++ {
		go m.runWorker(runCtx, slot, queued)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Int("queue_size", m.queueSize),
		logging.Duration("poll_interval", m.pollInterval),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop halts dispatching and waits for running jobs to reach a terminal
// state. Queued but unclaimed jobs stay pending.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.queued = nil
	clear(m.inFlight)
	m.mu.Unlock()
	m.metrics.setQueueDepth(0)
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) dispatch(ctx context.Context, queued chan<- int64) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		m.enqueuePending(ctx, queued)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.wake:
		}
	}
}

// enqueuePending fills the free channel capacity with pending ids that are
// not already queued or running. The dispatcher is the only sender, so the
// sends below never block.
func (m *Manager) enqueuePending(ctx context.Context, queued chan<- int64) {
	if ctx.Err() != nil {
		return
	}
	free := cap(queued) - len(queued)
	if free <= 0 {
		return
	}
	ids, err := m.store.PendingJobIDs(ctx, free, m.inFlightIDs())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.setLastError(err)
		m.logger.Error("failed to fetch pending jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	for _, id := range ids {
		m.markInFlight(id)
		queued <- id
	}
	m.metrics.setQueueDepth(len(queued))
}

func (m *Manager) runWorker(ctx context.Context, slot int, queued <-chan int64) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-queued:
			m.metrics.setQueueDepth(len(queued))
			m.processJob(ctx, slot, id)
			m.clearInFlight(id)
		}
	}
}

// processJob claims id and, if the claim wins, runs the job to a terminal
// state. ctx cancellation is honoured only up to the claim.
func (m *Manager) processJob(ctx context.Context, slot int, id int64) {
	if ctx.Err() != nil {
		return
	}
	claimed, err := m.store.Claim(ctx, id)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			m.logger.Error("failed to claim job",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if !claimed {
		m.logger.Debug("job already claimed", logging.Int64(logging.FieldJobID, id))
		return
	}

	jobCtx := services.WithWorker(services.WithJobID(context.WithoutCancel(ctx), id), slot)
	job, err := m.store.GetJob(jobCtx, id)
	if err != nil || job == nil {
		if err == nil {
			err = services.Wrap(services.ErrNotFound, "workflow", "load job", "claimed job vanished", nil)
		}
		m.failJob(jobCtx, &queue.Job{ID: id, Status: queue.StatusProcessing}, err, time.Now(), nil)
		return
	}
	jobCtx = services.WithJobType(jobCtx, string(job.Type))
	logger := logging.WithContext(jobCtx, m.logger)

	started := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int64(logging.FieldVideoID, job.VideoID),
	)
	m.metrics.jobStarted()
	defer m.metrics.jobFinished()

	result, err := m.exec.execute(jobCtx, logger, job)
	if err != nil {
		m.failJob(jobCtx, job, err, started, result.cleanup)
		return
	}
	m.completeJob(jobCtx, job, result, started)
}
