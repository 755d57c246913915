// Package taskq is the durable FIFO task queue between the gateway and the
// worker. Producers push serialized task records; workers block-pop one at a
// time and settle each delivery with Ack or Nack. Delivery is at-least-once:
// a nacked task becomes visible again until the retry budget runs out.
package taskq

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRetriesExceeded = errors.New("retries exceeded")
	ErrUnknownTask     = errors.New("unknown task id")
)

// FixedDelay returns a retry-delay function that ignores the attempt count.
func FixedDelay(d time.Duration) func(attempts int) time.Duration {
	return func(int) time.Duration { return d }
}

// Message is one delivery pulled off the queue.
type Message struct {
	ID       string
	Payload  []byte
	Attempts int
}

type Backend interface {
	// Enqueue makes the payload available for delivery. IDs are unique per
	// task; re-enqueueing an id that is still queued is a producer bug.
	Enqueue(ctx context.Context, id string, payload []byte) error
	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (*Message, error)
	// Ack settles a delivery; the task will not be delivered again.
	Ack(ctx context.Context, id string) error
	// Nack returns an in-flight delivery to the queue. Once the attempt
	// budget is exhausted the task is parked and ErrRetriesExceeded returned.
	Nack(ctx context.Context, id string) error
	Close() error
}
