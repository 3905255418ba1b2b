package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/entityscan/internal/engine"
	"github.com/dshills/entityscan/internal/lineindex"
	"github.com/dshills/entityscan/internal/metrics"
	"github.com/dshills/entityscan/pkg/types"
)

// Engine error policies
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
)

// Cross-line span policies
const (
	CrossLineClip = "clip"
	CrossLineKeep = "keep"
)

// Config holds collector settings
type Config struct {
	Workers       int    // concurrent engine calls, 1 for sequential
	OnEngineError string // fail or skip
	CrossLine     string // clip or keep
}

// DefaultConfig returns sequential, fail-fast, clipping settings
func DefaultConfig() Config {
	return Config{
		Workers:       1,
		OnEngineError: OnErrorFail,
		CrossLine:     CrossLineClip,
	}
}

// Validate checks the policy names and worker count
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", types.ErrConfiguration, c.Workers)
	}
	switch c.OnEngineError {
	case OnErrorFail, OnErrorSkip:
	default:
		return fmt.Errorf("%w: on_engine_error must be %q or %q, got %q",
			types.ErrConfiguration, OnErrorFail, OnErrorSkip, c.OnEngineError)
	}
	switch c.CrossLine {
	case CrossLineClip, CrossLineKeep:
	default:
		return fmt.Errorf("%w: cross_line must be %q or %q, got %q",
			types.ErrConfiguration, CrossLineClip, CrossLineKeep, c.CrossLine)
	}
	return nil
}

// Stats summarizes one collection run
type Stats struct {
	Chunks        int           `json:"chunks"`
	Entities      int           `json:"entities"`
	SkippedChunks int           `json:"skipped_chunks"`
	ClippedSpans  int           `json:"clipped_spans"`
	Duration      time.Duration `json:"duration"`
}

// Collector drives the engine over a chunk sequence
type Collector struct {
	engine  engine.Engine
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a collector. Empty policy fields take their defaults; logger
// and m may be nil.
func New(eng engine.Engine, cfg Config, logger *zap.Logger, m *metrics.Metrics) (*Collector, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: engine is required", types.ErrConfiguration)
	}

	defaults := DefaultConfig()
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.OnEngineError == "" {
		cfg.OnEngineError = defaults.OnEngineError
	}
	if cfg.CrossLine == "" {
		cfg.CrossLine = defaults.CrossLine
	}
	cfg.OnEngineError = strings.ToLower(cfg.OnEngineError)
	cfg.CrossLine = strings.ToLower(cfg.CrossLine)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}, nil
}

// Config returns the effective settings
func (c *Collector) Config() Config {
	return c.cfg
}

// chunkResult holds the outcome of one chunk
type chunkResult struct {
	hits    []types.EntityHit
	clipped int
	skipped bool
}

// Collect runs the engine over chunks and returns the resolved hits in chunk
// order. The hit slice is never nil.
func (c *Collector) Collect(ctx context.Context, ix *lineindex.Index, chunks iter.Seq[types.Chunk]) ([]types.EntityHit, *Stats, error) {
	start := time.Now()

	var (
		results []*chunkResult
		err     error
	)
	if c.cfg.Workers > 1 {
		results, err = c.collectParallel(ctx, ix, chunks)
	} else {
		results, err = c.collectSequential(ctx, ix, chunks)
	}
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{Chunks: len(results)}
	hits := make([]types.EntityHit, 0)
	for _, r := range results {
		hits = append(hits, r.hits...)
		stats.ClippedSpans += r.clipped
		if r.skipped {
			stats.SkippedChunks++
		}
	}
	stats.Entities = len(hits)
	stats.Duration = time.Since(start)

	c.logger.Debug("collection complete",
		zap.Int("chunks", stats.Chunks),
		zap.Int("entities", stats.Entities),
		zap.Int("skipped_chunks", stats.SkippedChunks),
		zap.Int("clipped_spans", stats.ClippedSpans),
		zap.Duration("duration", stats.Duration))

	return hits, stats, nil
}

func (c *Collector) collectSequential(ctx context.Context, ix *lineindex.Index, chunks iter.Seq[types.Chunk]) ([]*chunkResult, error) {
	var results []*chunkResult
	for chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.processChunk(ctx, ix, chunk)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// collectParallel processes chunks with a bounded errgroup. Each goroutine
// owns one result slot, so reassembly needs no locking.
func (c *Collector) collectParallel(ctx context.Context, ix *lineindex.Index, chunks iter.Seq[types.Chunk]) ([]*chunkResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	var results []*chunkResult
	for chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		slot := &chunkResult{}
		results = append(results, slot)

		g.Go(func() error {
			r, err := c.processChunk(gctx, ix, chunk)
			if err != nil {
				return err
			}
			*slot = *r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// processChunk runs the engine on one chunk and resolves its spans
func (c *Collector) processChunk(ctx context.Context, ix *lineindex.Index, chunk types.Chunk) (*chunkResult, error) {
	callStart := time.Now()
	spans, err := c.engine.Process(ctx, chunk.Text)
	if err == nil {
		err = validateSpans(spans, chunk.Length)
	}
	c.metrics.RecordEngineCall(c.engine.Name(), time.Since(callStart), err)

	if err != nil {
		// Cancellation is never a chunk failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if c.cfg.OnEngineError == OnErrorSkip {
			c.logger.Warn("skipping chunk after engine failure",
				zap.Int("chunk", chunk.Index),
				zap.Int("offset", chunk.Start),
				zap.Int("length", chunk.Length),
				zap.Error(err))
			c.metrics.RecordSkippedChunk()
			return &chunkResult{skipped: true}, nil
		}

		return nil, fmt.Errorf("%w: chunk %d at offset %d: %w", types.ErrEngineFailure, chunk.Index, chunk.Start, err)
	}

	r := &chunkResult{hits: make([]types.EntityHit, 0, len(spans))}
	for _, span := range spans {
		hit, clipped := Resolve(ix, chunk, span, c.cfg.CrossLine)
		if clipped {
			r.clipped++
			c.logger.Warn("entity crosses a line end, end clipped to the hit line",
				zap.String("text", span.Text),
				zap.String("label", span.Label),
				zap.Int("line", hit.HitLinePosition),
				zap.Int("end", span.End+chunk.Start-ix.Offset(hit.HitLinePosition)),
				zap.Int("clipped_end", hit.End))
		}
		c.metrics.RecordEntity(hit.Label, clipped)
		r.hits = append(r.hits, hit)
	}

	return r, nil
}

func validateSpans(spans []types.RawSpan, textLength int) error {
	var errs []error
	for _, s := range spans {
		if err := s.Validate(textLength); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve maps a chunk-relative span to document coordinates. The line is
// the one containing the span start; start and end are relative to that
// line's first character. Under CrossLineClip an end past the stripped hit
// line is clipped to it and clipped reports true.
func Resolve(ix *lineindex.Index, chunk types.Chunk, span types.RawSpan, crossLine string) (hit types.EntityHit, clipped bool) {
	absStart := chunk.Start + span.Start
	absEnd := chunk.Start + span.End

	lineIdx := ix.Lookup(absStart)
	lineStart := ix.Offset(lineIdx)
	prev, hitLine, next := ix.Context(lineIdx)

	start := absStart - lineStart
	end := absEnd - lineStart

	if crossLine != CrossLineKeep {
		if limit := max(utf8.RuneCountInString(hitLine), start); end > limit {
			end = limit
			clipped = true
		}
	}

	return types.EntityHit{
		Text:            span.Text,
		Label:           span.Label,
		HitLinePosition: lineIdx,
		Start:           start,
		End:             end,
		PrevLine:        prev,
		HitLine:         hitLine,
		NextLine:        next,
	}, clipped
}
