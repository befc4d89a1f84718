package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hanziwordle/hanziwordle/pkg/db"
	"github.com/hanziwordle/hanziwordle/pkg/dictionary"
	"github.com/hanziwordle/hanziwordle/pkg/hanzi"
	"github.com/hanziwordle/hanziwordle/pkg/metrics"
	"github.com/hanziwordle/hanziwordle/pkg/query"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Stats summarizes an import run.
type Stats struct {
	Files        int64
	FailedFiles  int64
	Entries      int64
	Stored       int64
	Duplicates   int64
	Skipped      int64
	DecodeErrors int64
}

type counters struct {
	files, failedFiles, entries, skipped, decodeErrors atomic.Int64
}

// Importer loads word lists from a directory tree into the word store.
type Importer struct {
	DB        *sql.DB
	Romanizer *hanzi.Romanizer
	Logger    *zap.Logger
	Metrics   *metrics.Recorder

	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	// ProgressEvery logs and reports progress each time this many more
	// words have been stored. Zero disables periodic reports.
	ProgressEvery int
	// OnProgress is called with the running number of stored words.
	OnProgress func(stored int64)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewImporter creates an Importer with default settings.
func NewImporter(conn *sql.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		DB:            conn,
		Romanizer:     hanzi.NewRomanizer(),
		Logger:        logger.Named("import"),
		Workers:       4,
		BatchSize:     200,
		FlushInterval: 500 * time.Millisecond,
		ProgressEvery: 1000,
	}
}

// ImportDir imports every regular file below dir. Malformed chunks and
// non-CJK titles are skipped; unreadable files are logged and counted. It
// fails only on setup errors, store errors or cancellation.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Stats, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Stats{}, err
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("%s is not a directory", dir)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var c counters
	w := NewRecordWriter(im.DB, im.BatchSize, im.FlushInterval)
	var progressMu sync.Mutex
	var nextReport int64 = int64(im.ProgressEvery)
	w.OnCommit = func(stored, _ int) {
		im.Metrics.Imported(stored)
		if im.ProgressEvery <= 0 {
			return
		}
		total := w.Stored()
		progressMu.Lock()
		defer progressMu.Unlock()
		if total < nextReport {
			return
		}
		for nextReport <= total {
			nextReport += int64(im.ProgressEvery)
		}
		im.Logger.Info("import progress", zap.Int64("stored", total))
		if im.OnProgress != nil {
			im.OnProgress(total)
		}
	}
	w.OnError = func(err error) {
		im.Logger.Error("batch write failed", zap.Error(err))
		cancel()
	}

	var wp WorkerPoolInterface
	if im.PoolFactory != nil {
		wp = im.PoolFactory(im.Workers, im.Workers*2)
	} else {
		wp = NewWorkerPool(im.Workers, im.Workers*2)
	}
	wp.Start(ctx)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			im.Logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			c.failedFiles.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		c.files.Add(1)
		return wp.SubmitCtx(ctx, func(ctx context.Context) error {
			// Failed files are counted here for any pool implementation.
			err := im.importFile(ctx, path, w, &c)
			if err != nil && ctx.Err() == nil {
				c.failedFiles.Add(1)
				im.Logger.Error("import file failed", zap.String("path", path), zap.Error(err))
			}
			return err
		})
	})

	wp.Close()
	writeErr := w.Close()

	stats := Stats{
		Files:        c.files.Load(),
		FailedFiles:  c.failedFiles.Load(),
		Entries:      c.entries.Load(),
		Stored:       w.Stored(),
		Duplicates:   w.Duplicates(),
		Skipped:      c.skipped.Load(),
		DecodeErrors: c.decodeErrors.Load(),
	}

	switch {
	case writeErr != nil:
		return stats, fmt.Errorf("store words: %w", writeErr)
	case walkErr != nil && !errors.Is(walkErr, ErrPoolClosed):
		return stats, walkErr
	case ctx.Err() != nil:
		return stats, ctx.Err()
	}
	if im.OnProgress != nil {
		im.OnProgress(stats.Stored)
	}
	im.Logger.Info("import finished",
		zap.Int64("files", stats.Files),
		zap.Int64("failed_files", stats.FailedFiles),
		zap.Int64("entries", stats.Entries),
		zap.Int64("stored", stats.Stored),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("decode_errors", stats.DecodeErrors),
	)
	return stats, nil
}

// importFile streams one file into the writer.
func (im *Importer) importFile(ctx context.Context, path string, w *RecordWriter, c *counters) error {
	return dictionary.LoadFile(path,
		func(e dictionary.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.entries.Add(1)
			word, ok := im.transform(path, e)
			if !ok {
				c.skipped.Add(1)
				return nil
			}
			return w.Submit(word)
		},
		func(de *dictionary.DecodeError) {
			c.decodeErrors.Add(1)
			im.Metrics.Skipped("decode_error")
			im.Logger.Warn("skipping malformed chunk",
				zap.String("path", de.Path),
				zap.Int("chunk", de.Chunk),
				zap.Error(de.Err),
			)
		},
	)
}

// transform validates an entry and computes its stored pinyin.
func (im *Importer) transform(path string, e dictionary.Entry) (db.Word, bool) {
	if !query.IsLiteral(e.Title) {
		im.Metrics.Skipped("not_cjk")
		im.Logger.Debug("skipping non-CJK title", zap.String("path", path), zap.String("title", e.Title))
		return db.Word{}, false
	}
	pinyin, err := im.Romanizer.Romanize(e.Title)
	if err != nil {
		im.Metrics.Skipped("romanize")
		im.Logger.Warn("skipping title without reading", zap.String("path", path), zap.Error(err))
		return db.Word{}, false
	}
	return db.Word{Text: e.Title, Pinyin: pinyin}, true
}
