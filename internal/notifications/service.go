package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
)

const userAgent = "vidpipe/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobDone   Event = "job_done"
	EventJobFailed Event = "job_failed"
	EventTest      Event = "test"
)

// Payload carries event-specific fields. Job events use the keys below.
type Payload map[string]any

const (
	KeyJobID    = "job_id"
	KeyJobType  = "job_type"
	KeyStatus   = "status"
	KeyVideoID  = "video_id"
	KeyOutput   = "output_file"
	KeyError    = "error"
	KeyDuration = "duration_seconds"
)

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the configured notifiers. Job events are dropped
// according to on_done/on_failed before reaching any transport.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var notifiers multiService
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		notifiers = append(notifiers, NewNtfy(topic, timeout))
	}
	if url := strings.TrimSpace(cfg.Notifications.AMQPURL); url != "" {
		notifiers = append(notifiers, NewAMQP(url, cfg.Notifications.AMQPExchange, timeout, nil,
			logging.NewComponentLogger(logger, "amqp")))
	}
	if len(notifiers) == 0 {
		return noopService{}
	}

	suppressed := map[Event]bool{
		EventJobDone:   !cfg.Notifications.OnDone,
		EventJobFailed: !cfg.Notifications.OnFailed,
	}
	var svc Service = notifiers
	if len(notifiers) == 1 {
		svc = notifiers[0]
	}
	return filtered{inner: svc, suppressed: suppressed}
}

type filtered struct {
	inner      Service
	suppressed map[Event]bool
}

func (f filtered) Publish(ctx context.Context, event Event, payload Payload) error {
	if f.suppressed[event] {
		return nil
	}
	return f.inner.Publish(ctx, event, payload)
}

// Close releases transport resources held by closable notifiers.
func Close(svc Service) error {
	switch s := svc.(type) {
	case filtered:
		return Close(s.inner)
	case multiService:
		var errs []error
		for _, inner := range s {
			errs = append(errs, Close(inner))
		}
		return errors.Join(errs...)
	case interface{ Close() error }:
		return s.Close()
	default:
		return nil
	}
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewNoop returns a Service that discards every event.
func NewNoop() Service { return noopService{} }

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
