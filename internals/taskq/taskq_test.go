package taskq

import (
	"context"
	"errors"
	"testing"
	"time"

	"docpipe/internals/testutil"
)

func backends(t *testing.T, retryMax int) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLite(SQLiteConfig{
		Path:         testutil.TempDBPath(t),
		QueueName:    "task_queue",
		RetryMax:     retryMax,
		PollInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Backend{
		"sqlite": sqlite,
		"memory": NewMemory(MemoryConfig{RetryMax: retryMax}),
	}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := backend.Enqueue(ctx, "a", []byte("first")); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			if err := backend.Enqueue(ctx, "b", []byte("second")); err != nil {
				t.Fatalf("enqueue: %v", err)
			}

			first, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if first.ID != "a" || string(first.Payload) != "first" {
				t.Fatalf("first = %+v", first)
			}
			second, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if second.ID != "b" {
				t.Fatalf("second = %+v", second)
			}
		})
	}
}

func TestAckedTaskIsNotRedelivered(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := backend.Enqueue(ctx, "a", []byte("p")); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			msg, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if err := backend.Ack(ctx, msg.ID); err != nil {
				t.Fatalf("ack: %v", err)
			}

			timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			if redelivered, err := backend.Dequeue(timeoutCtx); err == nil {
				t.Fatalf("unexpected redelivery: %+v", redelivered)
			}
		})
	}
}

func TestNackRedeliversWithAttemptCount(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := backend.Enqueue(ctx, "a", []byte("p")); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			msg, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if msg.Attempts != 0 {
				t.Fatalf("attempts = %d, want 0", msg.Attempts)
			}
			if err := backend.Nack(ctx, msg.ID); err != nil {
				t.Fatalf("nack: %v", err)
			}

			redelivered, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue after nack: %v", err)
			}
			if redelivered.ID != "a" || redelivered.Attempts != 1 {
				t.Fatalf("redelivered = %+v", redelivered)
			}
		})
	}
}

func TestNackExhaustsRetryBudget(t *testing.T) {
	for name, backend := range backends(t, 1) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := backend.Enqueue(ctx, "a", []byte("p")); err != nil {
				t.Fatalf("enqueue: %v", err)
			}

			msg, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if err := backend.Nack(ctx, msg.ID); err != nil {
				t.Fatalf("first nack: %v", err)
			}

			msg, err = backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("second dequeue: %v", err)
			}
			if err := backend.Nack(ctx, msg.ID); !errors.Is(err, ErrRetriesExceeded) {
				t.Fatalf("expected ErrRetriesExceeded, got %v", err)
			}

			timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			if redelivered, err := backend.Dequeue(timeoutCtx); err == nil {
				t.Fatalf("parked task was redelivered: %+v", redelivered)
			}
		})
	}
}

func TestSettleUnknownTask(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := backend.Ack(ctx, "ghost"); !errors.Is(err, ErrUnknownTask) {
				t.Fatalf("ack: expected ErrUnknownTask, got %v", err)
			}
			if err := backend.Nack(ctx, "ghost"); !errors.Is(err, ErrUnknownTask) {
				t.Fatalf("nack: expected ErrUnknownTask, got %v", err)
			}
		})
	}
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			go func() {
				time.Sleep(50 * time.Millisecond)
				_ = backend.Enqueue(context.Background(), "late", []byte("p"))
			}()

			start := time.Now()
			msg, err := backend.Dequeue(ctx)
			if err != nil {
				t.Fatalf("dequeue: %v", err)
			}
			if msg.ID != "late" {
				t.Fatalf("msg = %+v", msg)
			}
			if time.Since(start) > time.Second {
				t.Fatalf("dequeue did not wake promptly")
			}
		})
	}
}

func TestDequeueHonorsContextCancel(t *testing.T) {
	for name, backend := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			if _, err := backend.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected deadline exceeded, got %v", err)
			}
		})
	}
}

func TestSQLiteRejectsInvalidQueueName(t *testing.T) {
	_, err := NewSQLite(SQLiteConfig{
		Path:      testutil.TempDBPath(t),
		QueueName: "bad name; drop table",
	})
	if err == nil {
		t.Fatal("expected error for invalid queue name")
	}
}
