package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// WriteJob is one unit of work against the database.
type WriteJob interface {
	Execute(ctx context.Context, pool *pgxpool.Pool) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, pool *pgxpool.Pool) error

func (f WriteJobFunc) Execute(ctx context.Context, pool *pgxpool.Pool) error {
	return f(ctx, pool)
}

// BatchWriter runs write jobs off the streaming path. Jobs are executed in
// enqueue order, in batches of up to batchSize or every flushEvery.
type BatchWriter struct {
	pool       *pgxpool.Pool
	jobs       chan WriteJob
	batchSize  int
	flushEvery time.Duration
	dropped    atomic.Int64
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func NewBatchWriter(pool *pgxpool.Pool, bufferSize, batchSize int, flushEvery time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushEvery <= 0 {
		flushEvery = 100 * time.Millisecond
	}
	w := &BatchWriter{
		pool:       pool,
		jobs:       make(chan WriteJob, bufferSize),
		batchSize:  batchSize,
		flushEvery: flushEvery,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue never blocks; when the queue is full the job is dropped.
func (w *BatchWriter) Enqueue(job WriteJob) {
	select {
	case w.jobs <- job:
	default:
		n := w.dropped.Add(1)
		log.Warn().Int64("dropped_total", n).Msg("write queue full, dropping job")
	}
}

func (w *BatchWriter) Dropped() int64 { return w.dropped.Load() }

func (w *BatchWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	batch := make([]WriteJob, 0, w.batchSize)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, job := range batch {
		if err := job.Execute(ctx, w.pool); err != nil {
			failed++
			log.Error().Err(err).Msg("write job failed")
		}
	}
	log.Debug().Int("jobs", len(batch)).Int("failed", failed).Msg("write batch flushed")
}

// Shutdown drains queued jobs and stops the writer. Later calls do nothing.
func (w *BatchWriter) Shutdown() {
	w.closeOnce.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}
