package analyzer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/chunker"
	"github.com/dshills/entityscan/internal/collector"
	"github.com/dshills/entityscan/internal/engine"
	"github.com/dshills/entityscan/internal/lineindex"
	"github.com/dshills/entityscan/internal/metrics"
	"github.com/dshills/entityscan/internal/storage"
	"github.com/dshills/entityscan/pkg/types"
)

// binarySniffLen is how many leading bytes are checked for NUL
const binarySniffLen = 8000

// ErrScanInProgress is returned when a directory scan is already running
var ErrScanInProgress = errors.New("scan already in progress")

// Analyzer coordinates the pipeline: read -> index -> chunk -> collect -> export
type Analyzer struct {
	engine    engine.Engine
	chunker   *chunker.Chunker
	collector *collector.Collector
	storage   storage.Storage
	metrics   *metrics.Metrics
	logger    *zap.Logger
	scanLock  ScanLock
}

// Options contains everything besides the engine
type Options struct {
	ChunkSize int              // characters per chunk (default: chunker.DefaultChunkSize)
	Collector collector.Config // worker count and policies
	Storage   storage.Storage  // optional export target
	Metrics   *metrics.Metrics // optional
	Logger    *zap.Logger      // optional
}

// Report is the outcome of analyzing one document
type Report struct {
	Path        string // empty for text input
	Hits        []types.EntityHit
	Stats       *collector.Stats
	ContentHash [32]byte
	SizeBytes   int64
	ScanID      int64 // export row, 0 when not exported
}

// DirStats summarizes a directory scan
type DirStats struct {
	Files         int
	SkippedFiles  int
	FailedFiles   int
	Entities      int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates an Analyzer. The chunk size is checked against the engine's
// input limit here so no engine call happens with an invalid setting.
func New(eng engine.Engine, opts Options) (*Analyzer, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: engine is required", types.ErrConfiguration)
	}

	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
	}
	if limit := eng.MaxInputLength(); opts.ChunkSize > limit {
		return nil, fmt.Errorf("%w: chunk size %d exceeds the maximum input length %d of engine %s",
			types.ErrConfiguration, opts.ChunkSize, limit, eng.Name())
	}

	ch, err := chunker.New(opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	col, err := collector.New(eng, opts.Collector, logger.Named("collector"), opts.Metrics)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		engine:    eng,
		chunker:   ch,
		collector: col,
		storage:   opts.Storage,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// ChunkSize returns the configured chunk size
func (a *Analyzer) ChunkSize() int {
	return a.chunker.Size()
}

// AnalyzeFile analyzes the document at path. A missing path yields an error
// wrapping types.ErrInputNotFound and a binary file one wrapping
// types.ErrBinaryInput.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	report, err := a.analyzeFile(ctx, path)

	var size int64 = -1
	if report != nil {
		size = report.SizeBytes
	}
	a.metrics.RecordDocument(time.Since(start), size, err)

	return report, err
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) (*Report, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	report, err := a.analyze(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	report.Path = path
	report.SizeBytes = int64(len(data))
	report.ContentHash = sha256.Sum256(data)

	a.logger.Info("document analyzed",
		zap.String("path", path),
		zap.Int64("bytes", report.SizeBytes),
		zap.Int("chunks", report.Stats.Chunks),
		zap.Int("entities", report.Stats.Entities),
		zap.Int("skipped_chunks", report.Stats.SkippedChunks),
		zap.Int("clipped_spans", report.Stats.ClippedSpans),
		zap.Duration("duration", report.Stats.Duration))

	if err := a.export(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// AnalyzeText analyzes text held in memory. The result is never exported.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (*Report, error) {
	start := time.Now()
	report, err := a.analyze(ctx, text)
	a.metrics.RecordDocument(time.Since(start), int64(len(text)), err)
	if err != nil {
		return nil, err
	}
	report.SizeBytes = int64(len(text))
	report.ContentHash = sha256.Sum256([]byte(text))
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, text string) (*Report, error) {
	ix := lineindex.Build(text)
	a.logger.Debug("line index built",
		zap.Int("lines", ix.Len()),
		zap.Int("characters", ix.Length()))

	hits, stats, err := a.collector.Collect(ctx, ix, a.chunker.Chunks(ix.Lines()))
	if err != nil {
		return nil, err
	}

	return &Report{Hits: hits, Stats: stats}, nil
}

// export writes the report when an export target is configured
func (a *Analyzer) export(ctx context.Context, report *Report) error {
	if a.storage == nil {
		return nil
	}

	scan := &storage.Scan{
		FilePath:      report.Path,
		ContentHash:   report.ContentHash,
		SizeBytes:     report.SizeBytes,
		ChunkSize:     a.chunker.Size(),
		Engine:        a.engine.Name(),
		ChunkCount:    report.Stats.Chunks,
		SkippedChunks: report.Stats.SkippedChunks,
		Duration:      report.Stats.Duration,
	}
	if err := a.storage.SaveScan(ctx, scan, report.Hits); err != nil {
		return fmt.Errorf("export %s: %w", report.Path, err)
	}
	report.ScanID = scan.ID

	a.logger.Debug("scan exported",
		zap.String("path", report.Path),
		zap.Int64("scan_id", scan.ID))
	return nil
}

// AnalyzeDir analyzes every regular file below root in lexical order and
// calls emit for each successful report. Hidden directories are skipped,
// binary files are skipped with a log entry and failing files are recorded
// in the stats while the walk continues. An error from emit or a cancelled
// context stops the walk.
func (a *Analyzer) AnalyzeDir(ctx context.Context, root string, emit func(*Report) error) (*DirStats, error) {
	if !a.scanLock.TryAcquire() {
		return nil, ErrScanInProgress
	}
	defer a.scanLock.Release()

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrInputNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrConfiguration, root)
	}

	startTime := time.Now()
	stats := &DirStats{ErrorMessages: make([]string, 0)}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			stats.FailedFiles++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
			a.logger.Warn("cannot read path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			// Skip hidden directories
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		report, err := a.AnalyzeFile(ctx, path)
		switch {
		case err == nil:
		case errors.Is(err, types.ErrBinaryInput):
			stats.SkippedFiles++
			a.logger.Debug("skipping binary file", zap.String("path", path))
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			stats.FailedFiles++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
			a.logger.Warn("file analysis failed", zap.String("path", path), zap.Error(err))
			return nil
		}

		stats.Files++
		stats.Entities += len(report.Hits)
		return emit(report)
	})

	stats.Duration = time.Since(startTime)
	if err != nil {
		return stats, err
	}

	a.logger.Info("directory scanned",
		zap.String("root", root),
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.SkippedFiles),
		zap.Int("failed", stats.FailedFiles),
		zap.Int("entities", stats.Entities),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// readDocument reads path, refusing missing, directory and binary inputs
func readDocument(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrInputNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", types.ErrConfiguration, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if IsBinary(data) {
		return nil, fmt.Errorf("%w: %s", types.ErrBinaryInput, path)
	}
	return data, nil
}

// IsBinary reports whether data contains a NUL byte in its first 8000 bytes
func IsBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
