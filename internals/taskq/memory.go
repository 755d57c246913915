package taskq

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type MemoryConfig struct {
	RetryDelay func(attempts int) time.Duration
	RetryMax   int
}

// MemoryBackend is an in-process queue with the same delivery semantics as
// the sqlite backend. It exists for tests and for single-process setups
// where durability does not matter.
type MemoryBackend struct {
	mu       sync.Mutex
	pending  []*memItem
	inFlight map[string]*memItem
	signal   chan struct{}
	cfg      MemoryConfig
}

type memItem struct {
	id       string
	payload  []byte
	attempts int
}

func NewMemory(cfg MemoryConfig) *MemoryBackend {
	return &MemoryBackend{
		inFlight: make(map[string]*memItem),
		signal:   make(chan struct{}, 1),
		cfg:      cfg,
	}
}

func (b *MemoryBackend) Enqueue(ctx context.Context, id string, payload []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.Lock()
	b.pending = append(b.pending, &memItem{id: id, payload: payload})
	b.signalLocked()
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Dequeue(ctx context.Context) (*Message, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		b.mu.Lock()
		if len(b.pending) > 0 {
			item := b.pending[0]
			b.pending = b.pending[1:]
			b.inFlight[item.id] = item
			if len(b.pending) > 0 {
				b.signalLocked()
			}
			b.mu.Unlock()
			return &Message{ID: item.id, Payload: item.payload, Attempts: item.attempts}, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.signal:
		}
	}
}

func (b *MemoryBackend) Ack(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.inFlight[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	delete(b.inFlight, id)
	return nil
}

func (b *MemoryBackend) Nack(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.Lock()
	item, ok := b.inFlight[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	delete(b.inFlight, id)
	item.attempts++
	if b.cfg.RetryMax >= 0 && item.attempts > b.cfg.RetryMax {
		b.mu.Unlock()
		return ErrRetriesExceeded
	}

	if b.cfg.RetryDelay != nil {
		if delay := b.cfg.RetryDelay(item.attempts); delay > 0 {
			requeued := *item
			b.mu.Unlock()
			time.AfterFunc(delay, func() {
				b.mu.Lock()
				copied := requeued
				b.pending = append(b.pending, &copied)
				b.signalLocked()
				b.mu.Unlock()
			})
			return nil
		}
	}

	b.pending = append(b.pending, item)
	b.signalLocked()
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

func (b *MemoryBackend) signalLocked() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}
