// Package notifications delivers job terminal-state events via pluggable
// notifiers.
//
// Two transports are available: ntfy (HTTP POST to the configured topic
// URL) and AMQP (JSON messages on a topic exchange, routing key
// "job.<status>"). NewService combines whichever are configured and
// degrades to a no-op when neither is. Delivery errors are returned to the
// caller, which logs them; they never affect job state.
package notifications
