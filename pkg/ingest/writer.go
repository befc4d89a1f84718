package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanziwordle/hanziwordle/pkg/db"
)

// RecordWriter buffers words and stores them in batches, one transaction per
// batch. It is safe for concurrent use by the import workers.
type RecordWriter struct {
	mu          sync.Mutex
	buf         []db.Word
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []db.Word
	db       *sql.DB

	// OnError receives failed batches. OnCommit receives the number of new
	// and duplicate words of each committed batch. Both run on the committer
	// goroutine and must be set before the first Submit.
	OnError  func(error)
	OnCommit func(stored, duplicates int)

	stored     atomic.Int64
	duplicates atomic.Int64

	// lastErr stores the first asynchronous error seen by the writer. Protected by errMu.
	errMu   sync.Mutex
	lastErr error
}

// NewRecordWriter creates a writer that flushes when bufferSize words are
// pending or, if flushInterval is positive, at least that often.
func NewRecordWriter(conn *sql.DB, bufferSize int, flushInterval time.Duration) *RecordWriter {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &RecordWriter{
		buf:      make([]db.Word, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []db.Word, 2),
		db:       conn,
	}

	w.wg.Add(1)
	go w.committer()

	if flushInterval > 0 {
		w.flushTicker = time.NewTicker(flushInterval)
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Submit enqueues a word for storage.
func (w *RecordWriter) Submit(word db.Word) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.buf = append(w.buf, word)
	if len(w.buf) >= w.cap {
		w.flushLocked()
	}
	return nil
}

// flushLocked hands the buffer to the committer. Caller holds w.mu; a busy
// committer blocks Submit, which is the importer's backpressure.
func (w *RecordWriter) flushLocked() {
	if len(w.buf) == 0 {
		return
	}
	batch := w.buf
	w.buf = make([]db.Word, 0, w.cap)
	w.commitCh <- batch
}

func (w *RecordWriter) committer() {
	defer w.wg.Done()
	for batch := range w.commitCh {
		stored, err := w.executeBatch(batch)
		if err != nil {
			w.errMu.Lock()
			if w.lastErr == nil {
				w.lastErr = err
			}
			w.errMu.Unlock()
			if w.OnError != nil {
				w.OnError(err)
			}
			continue
		}
		dup := len(batch) - stored
		w.stored.Add(int64(stored))
		w.duplicates.Add(int64(dup))
		if w.OnCommit != nil {
			w.OnCommit(stored, dup)
		}
	}
}

func (w *RecordWriter) executeBatch(batch []db.Word) (int, error) {
	// Use background context for flushing so batches pending at Close
	// are still written.
	tx, err := w.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	stored, err := db.InsertWords(tx, batch)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch (%d words): %w", len(batch), err)
	}
	return stored, nil
}

func (w *RecordWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.mu.Lock()
			if !w.closed {
				w.flushLocked()
			}
			w.mu.Unlock()
		}
	}
}

// Stored returns how many words were newly stored so far.
func (w *RecordWriter) Stored() int64 { return w.stored.Load() }

// Duplicates returns how many submitted words already existed.
func (w *RecordWriter) Duplicates() int64 { return w.duplicates.Load() }

// Close flushes pending words, waits for all batches and returns the first
// batch error, if any.
func (w *RecordWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.flushLocked()
	w.mu.Unlock()

	w.cancel()
	close(w.commitCh)
	w.wg.Wait()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}

// ErrWriterClosed is returned by Submit and Close once the writer is closed.
var ErrWriterClosed = &WriterError{"record writer closed"}

type WriterError struct{ msg string }

func (e *WriterError) Error() string { return e.msg }
