package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// WriteFunc performs database writes inside a batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// pendingWrite is a queued WriteFunc and the hook to run once its batch commits.
type pendingWrite struct {
	fn        WriteFunc
	committed func()
}

// BatchWriter buffers writes and commits them in batches, one transaction per batch,
// on a single background goroutine so SQLite sees one writer.
//
// Each write runs under its own savepoint. When a write fails, the writes before it
// in the batch are still committed, the failed one is rolled back, and every write
// queued after it is dropped without touching the database.
type BatchWriter struct {
	db        *sql.DB
	batchSize int
	OnError   func(error)

	mu     sync.Mutex
	buf    []pendingWrite
	closed bool

	batches chan []pendingWrite
	stop    chan struct{}
	wg      sync.WaitGroup

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter starts a writer that flushes when batchSize writes are pending
// or, if flushInterval > 0, on every tick.
func NewBatchWriter(db *sql.DB, batchSize int, flushInterval time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 10
	}
	bw := &BatchWriter{
		db:        db,
		batchSize: batchSize,
		buf:       make([]pendingWrite, 0, batchSize),
		batches:   make(chan []pendingWrite, 2),
		stop:      make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.commitLoop()

	if flushInterval > 0 {
		bw.wg.Add(1)
		go bw.tickLoop(flushInterval)
	}
	return bw
}

// Submit queues w. It blocks while the committer is behind by more than two batches.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	return bw.SubmitThen(w, nil)
}

// SubmitThen queues w like Submit; committed runs after the transaction holding w
// commits, and never if w is rolled back or dropped.
func (bw *BatchWriter) SubmitThen(w WriteFunc, committed func()) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, pendingWrite{fn: w, committed: committed})
	if len(bw.buf) >= bw.batchSize {
		bw.flushLocked()
	}
	return nil
}

// flushLocked hands the buffer to the committer; bw.mu must be held.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]pendingWrite, 0, bw.batchSize)
	bw.batches <- batch
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.batches {
		if bw.Err() != nil {
			continue
		}
		if err := bw.commit(batch); err != nil {
			bw.errMu.Lock()
			if bw.firstErr == nil {
				bw.firstErr = err
			}
			bw.errMu.Unlock()
			if bw.OnError != nil {
				bw.OnError(err)
			}
		}
	}
}

// commit applies batch in one transaction and returns the first write error.
// Writes ahead of a failed one are committed.
func (bw *BatchWriter) commit(batch []pendingWrite) error {
	ctx := context.Background()
	if bw.db == nil {
		for _, w := range batch {
			if err := w.fn(ctx, nil); err != nil {
				return err
			}
			if w.committed != nil {
				w.committed()
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	applied := 0
	var writeErr error
	for _, w := range batch {
		var txErr error
		writeErr, txErr = applyWrite(ctx, tx, w.fn)
		if txErr != nil {
			return txErr
		}
		if writeErr != nil {
			break
		}
		applied++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch (%d writes): %w", applied, err)
	}
	for _, w := range batch[:applied] {
		if w.committed != nil {
			w.committed()
		}
	}
	return writeErr
}

// applyWrite runs fn inside a savepoint so a failure undoes only fn's own statements.
// txErr reports a savepoint failure, after which the transaction must not commit.
func applyWrite(ctx context.Context, tx *sql.Tx, fn WriteFunc) (writeErr, txErr error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT batch_write"); err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO batch_write"); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE batch_write"); relErr != nil {
			return nil, fmt.Errorf("release savepoint: %w", relErr)
		}
		return err, nil
	}
	if _, err := tx.ExecContext(ctx, "RELEASE batch_write"); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return nil, nil
}

func (bw *BatchWriter) tickLoop(interval time.Duration) {
	defer bw.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-bw.stop:
			return
		case <-t.C:
			bw.mu.Lock()
			if !bw.closed {
				bw.flushLocked()
			}
			bw.mu.Unlock()
		}
	}
}

// Close flushes pending writes, waits for every batch to commit and returns
// the first commit error, if any. Writes queued after a failure are dropped.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	bw.flushLocked()
	close(bw.stop)
	close(bw.batches)
	bw.mu.Unlock()

	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// Err returns the first commit error seen so far.
func (bw *BatchWriter) Err() error {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
