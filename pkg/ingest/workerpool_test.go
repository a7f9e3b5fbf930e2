package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

var ignoreSQLOpener = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

func TestWorkerPoolDrainsQueueOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	p := NewWorkerPool(3, 64)
	p.Start(context.Background())
	var ran int32
	for i := 0; i < 64; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	p.Close()

	if got := atomic.LoadInt32(&ran); got != 64 {
		t.Fatalf("ran %d of 64 queued jobs", got)
	}
}

// Every submit racing Close either lands in the queue and runs, or reports
// ErrPoolClosed. Nothing panics on the closed channel and nothing is lost.
func TestConcurrentSubmitDuringClose(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	p := NewWorkerPool(2, 4)
	p.Start(context.Background())

	var accepted, rejected, ran int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 50; j++ {
				err := p.Submit(func(ctx context.Context) error {
					atomic.AddInt32(&ran, 1)
					return nil
				})
				switch err {
				case nil:
					atomic.AddInt32(&accepted, 1)
				case ErrPoolClosed:
					atomic.AddInt32(&rejected, 1)
				default:
					t.Errorf("unexpected submit error: %v", err)
				}
			}
		}()
	}

	close(start)
	time.Sleep(time.Millisecond)
	p.Close()
	wg.Wait()

	acc, rej := atomic.LoadInt32(&accepted), atomic.LoadInt32(&rejected)
	if acc+rej != 16*50 {
		t.Fatalf("accepted %d + rejected %d != %d", acc, rej, 16*50)
	}
	if got := atomic.LoadInt32(&ran); got != acc {
		t.Fatalf("ran %d jobs, accepted %d", got, acc)
	}
}

func TestCloseReleasesBlockedSubmitters(t *testing.T) {
	p := NewWorkerPool(1, 1)
	// No workers: the first job fills the queue and the rest block.
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("fill queue: %v", err)
	}

	const blocked = 4
	errs := make(chan error, blocked)
	for i := 0; i < blocked; i++ {
		go func() {
			errs <- p.SubmitCtx(context.Background(), func(ctx context.Context) error { return nil })
		}()
	}
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close deadlocked behind blocked submitters")
	}

	for i := 0; i < blocked; i++ {
		if err := <-errs; err != ErrPoolClosed {
			t.Fatalf("blocked submitter %d: expected ErrPoolClosed, got %v", i, err)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewWorkerPool(1, 1)
	p.Start(context.Background())
	p.Close()
	p.Close()
	if err := p.SubmitCtx(context.Background(), func(ctx context.Context) error { return nil }); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed after Close, got %v", err)
	}
}

func TestSubmitCtxHonorsDeadline(t *testing.T) {
	p := NewWorkerPool(1, 1)
	defer p.Close()
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("fill queue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.SubmitCtx(ctx, func(ctx context.Context) error { return nil }); err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestCancelledWorkersLetCloseReturn(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	p := NewWorkerPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Close blocked after context cancellation")
	}
}
