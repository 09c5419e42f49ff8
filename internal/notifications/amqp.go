package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"vidpipe/internal/logging"
)

// AMQPChannel is the subset of *amqp.Channel used for publishing.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPDialer opens a channel on a broker within timeout. The returned
// closer releases the underlying connection.
type AMQPDialer func(url string, timeout time.Duration) (AMQPChannel, func() error, error)

// amqpRedialBackoff is how long publishes fail fast after a failed dial.
const amqpRedialBackoff = 30 * time.Second

// DialAMQP connects with amqp091-go. The timeout bounds the TCP connect and
// the protocol handshake.
func DialAMQP(url string, timeout time.Duration) (AMQPChannel, func() error, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

type amqpService struct {
	url      string
	exchange string
	timeout  time.Duration
	dial     AMQPDialer
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	channel   AMQPChannel
	closeConn func() error
	dialErr   error
	retryAt   time.Time
}

// NewAMQP returns a notifier publishing JSON events to a topic exchange.
// The connection is opened lazily and re-opened after a publish failure.
// After a failed dial, publishes return the dial error without contacting the
// broker until the redial backoff passes. A nil dial uses DialAMQP.
func NewAMQP(url, exchange string, timeout time.Duration, dial AMQPDialer, logger *slog.Logger) Service {
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "vidpipe.jobs"
	}
	return &amqpService{url: url, exchange: exchange, timeout: timeout, dial: dial, logger: logger, now: time.Now}
}

type amqpEvent struct {
	Event     Event          `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// RoutingKey returns the routing key for an event: "job.<status>" for job
// events and the event name otherwise.
func RoutingKey(event Event, payload Payload) string {
	if status := payload.str(KeyStatus); status != "" {
		return "job." + status
	}
	switch event {
	case EventJobDone:
		return "job.done"
	case EventJobFailed:
		return "job.failed"
	default:
		return string(event)
	}
}

func (a *amqpService) Publish(ctx context.Context, event Event, payload Payload) error {
	body, err := json.Marshal(amqpEvent{Event: event, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		return fmt.Errorf("encode amqp event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ch, err := a.ensureChannel()
	if err != nil {
		return err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	key := RoutingKey(event, payload)
	err = ch.PublishWithContext(ctx, a.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event),
		Body:         body,
	})
	if err != nil {
		a.resetLocked()
		return fmt.Errorf("publish amqp event %s: %w", key, err)
	}
	return nil
}

func (a *amqpService) ensureChannel() (AMQPChannel, error) {
	if a.channel != nil {
		return a.channel, nil
	}
	if a.dialErr != nil && a.now().Before(a.retryAt) {
		return nil, fmt.Errorf("amqp broker unavailable until %s: %w", a.retryAt.Format(time.RFC3339), a.dialErr)
	}
	ch, closeConn, err := a.dial(a.url, a.timeout)
	if err != nil {
		a.dialErr = err
		a.retryAt = a.now().Add(amqpRedialBackoff)
		a.logger.Warn("amqp dial failed",
			logging.String("exchange", a.exchange),
			logging.Error(err),
			logging.String(logging.FieldEventType, "amqp_dial_failed"),
		)
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	a.dialErr = nil
	if err := ch.ExchangeDeclare(a.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return nil, fmt.Errorf("declare amqp exchange %s: %w", a.exchange, err)
	}
	a.channel = ch
	a.closeConn = closeConn
	a.logger.Info("amqp publisher connected",
		logging.String("exchange", a.exchange),
		logging.String(logging.FieldEventType, "amqp_connected"),
	)
	return ch, nil
}

func (a *amqpService) resetLocked() {
	if a.channel != nil {
		_ = a.channel.Close()
	}
	if a.closeConn != nil {
		_ = a.closeConn()
	}
	a.channel = nil
	a.closeConn = nil
}

// Close shuts the channel and connection if open.
func (a *amqpService) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	return nil
}
