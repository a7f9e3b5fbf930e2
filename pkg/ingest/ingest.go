package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/dilemmaguide/pkg/db"
	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester imports data exports into the record database.
type Ingester struct {
	DB *sql.DB
	// BatchSize is the number of sources committed per transaction.
	BatchSize int
	Workers   int
	Logger    *zap.Logger
	// OnProgress is called after each source is queued for writing.
	OnProgress func(done, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates an Ingester with default batch size and worker count.
func NewIngester(conn *sql.DB, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		DB:        conn,
		BatchSize: 8,
		Workers:   4,
		Logger:    logger,
	}
}

// parsedSource is the outcome of loading one source on a worker.
type parsedSource struct {
	Index   int
	Source  Source
	Records []dilemma.Record
	Err     error
}

// Ingest parses sources concurrently and appends their records to the database
// in source order, then row order. Ids must be unique across the database and all
// sources; a clash aborts the import before the offending source is written.
//
// A source is written whole or not at all, together with its imports row. On
// failure the sources ahead of the failing one are kept and nothing after it is
// written. It returns the number of records committed.
func (ig *Ingester) Ingest(ctx context.Context, sources []Source) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log := ig.Logger
	if log == nil {
		log = zap.NewNop()
	}

	nextPos, err := db.NextPosition(ig.DB)
	if err != nil {
		return 0, fmt.Errorf("read next position: %w", err)
	}
	existing, err := db.LoadRecords(ig.DB)
	if err != nil {
		return 0, fmt.Errorf("load existing records: %w", err)
	}
	seen := make(map[string]string, len(existing))
	for _, r := range existing {
		seen[r.ID] = "database"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, len(sources))
	} else {
		wp = NewWorkerPool(workers, len(sources))
	}
	wp.Start(ctx)
	defer wp.Close()

	results := make(chan parsedSource, len(sources))

	// Producer: one parse job per source.
	submitErr := make(chan error, 1)
	go func() {
		defer close(submitErr)
		for i, src := range sources {
			idx, src := i, src
			job := func(ctx context.Context) error {
				start := time.Now()
				records, err := Load(src)
				log.Debug("parsed source",
					zap.String("path", src.Path),
					zap.String("format", string(src.Format)),
					zap.Int("records", len(records)),
					zap.Duration("took", time.Since(start)),
					zap.Error(err))
				select {
				case results <- parsedSource{Index: idx, Source: src, Records: records, Err: err}:
				case <-ctx.Done():
				}
				return err
			}
			if err := wp.SubmitCtx(ctx, job); err != nil {
				if errors.Is(err, ctx.Err()) || err == ErrPoolClosed {
					return
				}
				submitErr <- err
				return
			}
		}
	}()

	bw := NewBatchWriter(ig.DB, ig.BatchSize, 100*time.Millisecond)
	var written int64
	var batchOnce sync.Once
	bw.OnError = func(err error) {
		batchOnce.Do(func() {
			log.Error("batch commit failed", zap.Error(err))
			cancel()
		})
	}

	fail := func(err error) (int, error) {
		cancel()
		_ = bw.Close()
		return int(atomic.LoadInt64(&written)), err
	}

	// Consumer: results arrive in any order; write them in source order.
	pending := make(map[int]parsedSource)
	next := 0
	for next < len(sources) {
		var res parsedSource
		select {
		case <-ctx.Done():
			if err := bw.Err(); err != nil {
				return fail(err)
			}
			return fail(ctx.Err())
		case err, ok := <-submitErr:
			if ok && err != nil {
				return fail(fmt.Errorf("submit parse job: %w", err))
			}
			submitErr = nil
			continue
		case res = <-results:
		}
		pending[res.Index] = res

		for {
			item, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			// Sources ahead of a broken one are already queued and still get written.
			if item.Err != nil {
				return fail(item.Err)
			}

			for _, r := range item.Records {
				if prev, dup := seen[r.ID]; dup {
					return fail(fmt.Errorf("%s: %w: %q (already in %s)", item.Source.Path, dilemma.ErrDuplicateID, r.ID, prev))
				}
				seen[r.ID] = item.Source.Path
			}

			src, recs, first := item.Source, item.Records, nextPos
			count := len(recs)
			nextPos += int64(count)
			if err := bw.SubmitThen(func(ctx context.Context, tx *sql.Tx) error {
				for i, r := range recs {
					if err := db.InsertRecord(tx, first+int64(i), r); err != nil {
						return fmt.Errorf("%s: record %q: %w", src.Path, r.ID, err)
					}
				}
				_, err := db.RecordImport(tx, src.Path, string(src.Format), count)
				return err
			}, func() {
				atomic.AddInt64(&written, int64(count))
			}); err != nil {
				return fail(err)
			}
			log.Info("queued source", zap.String("path", src.Path), zap.Int("records", count))

			next++
			if ig.OnProgress != nil {
				ig.OnProgress(next, len(sources))
			}
		}
	}

	if err := bw.Close(); err != nil {
		return int(atomic.LoadInt64(&written)), err
	}
	return int(atomic.LoadInt64(&written)), nil
}
