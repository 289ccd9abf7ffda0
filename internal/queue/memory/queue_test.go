package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type job struct {
	index int
	url   string
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue[job](1)
	result := make(chan job, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), job{index: 1, url: "http://books.toscrape.com/"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.index != 1 {
			t.Fatalf("expected index 1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue[job](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue[job](1)
	if err := qEnqueue.Enqueue(context.Background(), job{index: 0}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, job{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueDrainsBeforeClosedError(t *testing.T) {
	t.Parallel()

	q := NewQueue[job](3)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), job{index: i}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	q.Close()
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued items, got %d", q.Len())
	}
	for i := 0; i < 3; i++ {
		got, err := q.Dequeue(context.Background())
		if err != nil || got.index != i {
			t.Fatalf("Dequeue() = %+v, %v; want index %d", got, err, i)
		}
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
