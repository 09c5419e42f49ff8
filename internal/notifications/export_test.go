package notifications

import "time"

// SetAMQPClock replaces the clock used for the redial backoff.
func SetAMQPClock(svc Service, now func() time.Time) {
	svc.(*amqpService).now = now
}
