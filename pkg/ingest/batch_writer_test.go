package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/japaniel/dilemmaguide/pkg/db"
	"github.com/japaniel/dilemmaguide/pkg/dilemma"
	_ "github.com/mattn/go-sqlite3"
)

func insertFunc(pos int64, id string) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		return db.InsertRecord(tx, pos, dilemma.Record{ID: id, Dilemma: "D" + id})
	}
}

func TestBatchWriterTransactions(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	bw := NewBatchWriter(conn, 2, 0)
	for i, id := range []string{"a", "b", "c"} {
		if err := bw.Submit(insertFunc(int64(i), id)); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	// Close and wait for pending batches to be committed. Use a timeout to avoid hanging tests.
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- bw.Close()
	}()
	select {
	case err := <-doneCh:
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for batch commit/close")
	}

	count, err := db.CountRecords(conn)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
}

func TestBatchWriterRollsBackFailedWrite(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	bw := NewBatchWriter(conn, 2, 0)
	errCh := make(chan error, 1)
	bw.OnError = func(e error) {
		errCh <- e
	}

	// Same batch: the first write commits, the duplicate is undone.
	bw.Submit(insertFunc(0, "same"))
	bw.Submit(insertFunc(1, "same"))

	if err := bw.Close(); !db.IsDuplicateID(err) {
		t.Fatalf("expected duplicate id error from Close, got %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	default:
		t.Fatal("expected OnError to be called")
	}

	count, err := db.CountRecords(conn)
	if err != nil {
		t.Fatalf("failed to query row count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestBatchWriterFailedWriteLeavesNoPartialRows(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	bw := NewBatchWriter(conn, 4, 0)
	bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		if err := db.InsertRecord(tx, 0, dilemma.Record{ID: "a", Dilemma: "A"}); err != nil {
			return err
		}
		return fmt.Errorf("broken after insert")
	})
	if err := bw.Close(); err == nil || err.Error() != "broken after insert" {
		t.Fatalf("expected write error, got %v", err)
	}
	count, err := db.CountRecords(conn)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected the failed write to be undone, got %d rows", count)
	}
}

func TestBatchWriterDropsWritesAfterFailure(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	var committed []string
	var mu sync.Mutex
	note := func(id string) func() {
		return func() {
			mu.Lock()
			committed = append(committed, id)
			mu.Unlock()
		}
	}

	bw := NewBatchWriter(conn, 2, 0)
	steps := []struct {
		id string
		fn WriteFunc
	}{
		{"a", insertFunc(0, "a")},
		{"bad", func(ctx context.Context, tx *sql.Tx) error { return fmt.Errorf("bad write") }},
		{"c", insertFunc(2, "c")},
		{"d", insertFunc(3, "d")},
		{"e", insertFunc(4, "e")},
	}
	for _, s := range steps {
		if err := bw.SubmitThen(s.fn, note(s.id)); err != nil {
			t.Fatalf("submit %s: %v", s.id, err)
		}
	}
	if err := bw.Close(); err == nil || err.Error() != "bad write" {
		t.Fatalf("expected bad write error, got %v", err)
	}

	ids, err := db.LoadRecords(conn)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 1 || ids[0].ID != "a" {
		t.Fatalf("expected only a to be stored, got %+v", ids)
	}
	if len(committed) != 1 || committed[0] != "a" {
		t.Fatalf("expected only a's commit hook to run, got %v", committed)
	}
}

func TestBatchWriterKeepsFirstError(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return fmt.Errorf("first") })
	bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return fmt.Errorf("second") })
	err := bw.Close()
	if err == nil || err.Error() != "first" {
		t.Fatalf("expected first error, got %v", err)
	}
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	bw := NewBatchWriter(nil, 5, 0)
	var mu sync.Mutex
	called := 0
	for i := 0; i < 12; i++ {
		if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			mu.Lock()
			called++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if called != 12 {
		t.Fatalf("expected 12 calls, got %d", called)
	}
}

func TestBatchWriterFlushesOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 20*time.Millisecond)
	defer bw.Close()
	ran := make(chan struct{}, 1)
	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		ran <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("expected the ticker to flush a partial batch")
	}
}

func TestBatchWriterSubmitAfterClose(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	if err := bw.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return nil }); err != ErrBatchWriterClosed {
		t.Fatalf("expected ErrBatchWriterClosed, got %v", err)
	}
	if err := bw.Close(); err != ErrBatchWriterClosed {
		t.Fatalf("expected ErrBatchWriterClosed on second close, got %v", err)
	}
}
