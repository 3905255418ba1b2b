package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/entityscan/internal/chunker"
	"github.com/dshills/entityscan/internal/engine"
	"github.com/dshills/entityscan/internal/lineindex"
	"github.com/dshills/entityscan/internal/metrics"
	"github.com/dshills/entityscan/pkg/types"
)

// word is a fixed string the fake engine reports under label
type word struct {
	text  string
	label string
}

// fakeEngine reports every occurrence of its words, word by word, with
// character offsets. failOn makes it fail for texts containing that string.
type fakeEngine struct {
	words  []word
	failOn string
	spans  func(text string) []types.RawSpan

	mu    sync.Mutex
	calls []string
}

func (f *fakeEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("engine exploded")
	}
	if f.spans != nil {
		return f.spans(text), nil
	}

	var spans []types.RawSpan
	for _, w := range f.words {
		from := 0
		for {
			i := strings.Index(text[from:], w.text)
			if i < 0 {
				break
			}
			b := from + i
			start := utf8.RuneCountInString(text[:b])
			spans = append(spans, types.RawSpan{
				Start: start,
				End:   start + utf8.RuneCountInString(w.text),
				Text:  w.text,
				Label: w.label,
			})
			from = b + len(w.text)
		}
	}
	return spans, nil
}

func (f *fakeEngine) MaxInputLength() int { return engine.DefaultMaxInputLength }
func (f *fakeEngine) Name() string        { return "fake" }
func (f *fakeEngine) Close() error        { return nil }

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func collect(t *testing.T, eng engine.Engine, cfg Config, text string, chunkSize int) ([]types.EntityHit, *Stats, error) {
	t.Helper()
	c, err := New(eng, cfg, nil, nil)
	require.NoError(t, err)

	ix := lineindex.Build(text)
	ch, err := chunker.New(chunkSize)
	require.NoError(t, err)

	return c.Collect(context.Background(), ix, ch.Chunks(ix.Lines()))
}

func strPtr(s string) *string { return &s }

func TestCollect_SingleLine(t *testing.T) {
	eng := &fakeEngine{words: []word{{"Hans Müller", "PER"}}}

	hits, stats, err := collect(t, eng, DefaultConfig(), "Hans Müller wohnt in Berlin.\n", 1000)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, types.EntityHit{
		Text:            "Hans Müller",
		Label:           "PER",
		HitLinePosition: 0,
		Start:           0,
		End:             11,
		PrevLine:        nil,
		HitLine:         "Hans Müller wohnt in Berlin.",
		NextLine:        nil,
	}, hits[0])

	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Entities)
}

func TestCollect_EmptyDocument(t *testing.T) {
	eng := &fakeEngine{words: []word{{"x", "MISC"}}}

	hits, stats, err := collect(t, eng, DefaultConfig(), "", 1000)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, eng.callCount())
}

func TestCollect_AcrossChunks(t *testing.T) {
	text := "Anna lebt hier.\n" +
		"Sie kennt Jörg aus Köln.\n" +
		"Ende\r\n" +
		"Köln ist groß."

	eng := &fakeEngine{words: []word{{"Anna", "PER"}, {"Jörg", "PER"}, {"Köln", "LOC"}}}

	// Every line becomes its own chunk
	hits, stats, err := collect(t, eng, DefaultConfig(), text, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Chunks)
	require.Len(t, hits, 4)

	assert.Equal(t, "Anna", hits[0].Text)
	assert.Equal(t, 0, hits[0].HitLinePosition)
	assert.Nil(t, hits[0].PrevLine)
	assert.Equal(t, strPtr("Sie kennt Jörg aus Köln."), hits[0].NextLine)

	assert.Equal(t, "Jörg", hits[1].Text)
	assert.Equal(t, 1, hits[1].HitLinePosition)
	assert.Equal(t, 10, hits[1].Start)
	assert.Equal(t, 14, hits[1].End)
	assert.Equal(t, strPtr("Anna lebt hier."), hits[1].PrevLine)
	assert.Equal(t, strPtr("Ende"), hits[1].NextLine)

	assert.Equal(t, "Köln", hits[2].Text)
	assert.Equal(t, 1, hits[2].HitLinePosition)
	assert.Equal(t, 19, hits[2].Start)
	assert.Equal(t, 23, hits[2].End)

	assert.Equal(t, "Köln", hits[3].Text)
	assert.Equal(t, 3, hits[3].HitLinePosition)
	assert.Equal(t, 0, hits[3].Start)
	assert.Equal(t, "Köln ist groß.", hits[3].HitLine)
	assert.Equal(t, strPtr("Ende"), hits[3].PrevLine)
	assert.Nil(t, hits[3].NextLine)
}

func TestCollect_SameResultAnyChunkSize(t *testing.T) {
	text := strings.Repeat("Herr Schmidt wohnt in München.\nFrau Özdemir arbeitet bei Siemens.\n\n", 20)
	eng := &fakeEngine{words: []word{{"Schmidt", "PER"}, {"Özdemir", "PER"}, {"München", "LOC"}, {"Siemens", "ORG"}}}

	type key struct {
		line, start int
		text        string
	}
	index := func(hits []types.EntityHit) map[key]types.EntityHit {
		m := make(map[key]types.EntityHit, len(hits))
		for _, h := range hits {
			m[key{h.HitLinePosition, h.Start, h.Text}] = h
		}
		return m
	}

	reference, _, err := collect(t, eng, DefaultConfig(), text, len([]rune(text)))
	require.NoError(t, err)
	require.Len(t, reference, 80)

	for _, size := range []int{1, 40, 100, 1000} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			hits, _, err := collect(t, eng, DefaultConfig(), text, size)
			require.NoError(t, err)
			assert.Equal(t, index(reference), index(hits))
		})
	}
}

func TestCollect_EngineOrderKept(t *testing.T) {
	// Engine reports later spans first
	eng := &fakeEngine{spans: func(text string) []types.RawSpan {
		return []types.RawSpan{
			{Start: 6, End: 10, Text: "Berg", Label: "LOC"},
			{Start: 0, End: 5, Text: "Maria", Label: "PER"},
		}
	}}

	hits, _, err := collect(t, eng, DefaultConfig(), "Maria Berg\n", 100)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Berg", hits[0].Text)
	assert.Equal(t, "Maria", hits[1].Text)
}

func TestCollect_CrossLineSpan(t *testing.T) {
	text := "Firma Muster\nGmbH sitzt in Bonn.\n"
	eng := &fakeEngine{spans: func(string) []types.RawSpan {
		return []types.RawSpan{{Start: 6, End: 17, Text: "Muster\nGmbH", Label: "ORG"}}
	}}

	t.Run("clip", func(t *testing.T) {
		hits, stats, err := collect(t, eng, DefaultConfig(), text, 100)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 0, hits[0].HitLinePosition)
		assert.Equal(t, 6, hits[0].Start)
		assert.Equal(t, 12, hits[0].End)
		assert.Equal(t, 1, stats.ClippedSpans)
	})

	t.Run("clip is logged as a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		c, err := New(eng, DefaultConfig(), zap.New(core), nil)
		require.NoError(t, err)
		ch, err := chunker.New(100)
		require.NoError(t, err)

		ix := lineindex.Build(text)
		_, _, err = c.Collect(context.Background(), ix, ch.Chunks(ix.Lines()))
		require.NoError(t, err)

		entries := logs.FilterMessageSnippet("clipped").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "Muster\nGmbH", fields["text"])
		assert.Equal(t, int64(17), fields["end"])
		assert.Equal(t, int64(12), fields["clipped_end"])
	})

	t.Run("keep", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CrossLine = CrossLineKeep
		hits, stats, err := collect(t, eng, cfg, text, 100)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 17, hits[0].End)
		assert.Equal(t, 0, stats.ClippedSpans)
	})
}

func TestCollect_EngineFailure(t *testing.T) {
	text := "eins Anna\nzwei kaputt\ndrei Anna\n"
	eng := &fakeEngine{words: []word{{"Anna", "PER"}}, failOn: "kaputt"}

	t.Run("fail", func(t *testing.T) {
		hits, stats, err := collect(t, eng, DefaultConfig(), text, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrEngineFailure))
		assert.Contains(t, err.Error(), "chunk 1 at offset 10")
		assert.Contains(t, err.Error(), "engine exploded")
		assert.Nil(t, hits)
		assert.Nil(t, stats)
	})

	t.Run("skip", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OnEngineError = OnErrorSkip
		hits, stats, err := collect(t, eng, cfg, text, 5)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, 0, hits[0].HitLinePosition)
		assert.Equal(t, 2, hits[1].HitLinePosition)
		assert.Equal(t, 3, stats.Chunks)
		assert.Equal(t, 1, stats.SkippedChunks)
	})
}

func TestCollect_InvalidSpan(t *testing.T) {
	eng := &fakeEngine{spans: func(text string) []types.RawSpan {
		return []types.RawSpan{{Start: 2, End: 99, Text: "x", Label: "MISC"}}
	}}

	_, _, err := collect(t, eng, DefaultConfig(), "kurz\n", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEngineFailure))
	assert.True(t, errors.Is(err, types.ErrInvalidSpan))
}

func TestCollect_ParallelMatchesSequential(t *testing.T) {
	var b strings.Builder
	for i := range 200 {
		fmt.Fprintf(&b, "Zeile %d: Petra trifft Klaus in Hamburg.\n", i)
	}
	text := b.String()
	eng := &fakeEngine{words: []word{{"Klaus", "PER"}, {"Petra", "PER"}, {"Hamburg", "LOC"}}}

	sequential, seqStats, err := collect(t, eng, DefaultConfig(), text, 256)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workers = workers
			parallel, stats, err := collect(t, eng, cfg, text, 256)
			require.NoError(t, err)
			assert.Equal(t, sequential, parallel)
			assert.Equal(t, seqStats.Chunks, stats.Chunks)
			assert.Equal(t, 600, stats.Entities)
		})
	}
}

func TestCollect_ParallelFailure(t *testing.T) {
	text := strings.Repeat("gut\n", 50) + "kaputt\n" + strings.Repeat("gut\n", 50)
	eng := &fakeEngine{failOn: "kaputt"}

	cfg := DefaultConfig()
	cfg.Workers = 4
	_, _, err := collect(t, eng, cfg, text, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEngineFailure))
}

func TestCollect_ContextCancelled(t *testing.T) {
	eng := &fakeEngine{words: []word{{"a", "MISC"}}}
	c, err := New(eng, DefaultConfig(), nil, nil)
	require.NoError(t, err)

	ix := lineindex.Build("a\nb\n")
	ch, err := chunker.New(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = c.Collect(ctx, ix, ch.Chunks(ix.Lines()))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, types.ErrEngineFailure))
}

func TestCollect_Metrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	eng := &fakeEngine{words: []word{{"Anna", "PER"}}, failOn: "kaputt"}

	cfg := DefaultConfig()
	cfg.OnEngineError = OnErrorSkip
	c, err := New(eng, cfg, nil, m)
	require.NoError(t, err)

	ix := lineindex.Build("Anna\nkaputt\nAnna\n")
	ch, err := chunker.New(5)
	require.NoError(t, err)

	_, _, err = c.Collect(context.Background(), ix, ch.Chunks(ix.Lines()))
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChunksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedChunksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineErrorsTotal.WithLabelValues("fake")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntitiesTotal.WithLabelValues("PER")))
}

func TestResolve(t *testing.T) {
	ix := lineindex.Build("erste\nzweite Zeile\r\ndritte")
	chunk := types.Chunk{Index: 0, Text: "zweite Zeile\r\ndritte", Length: 20, Start: 6, FirstLine: 1, LastLine: 2}

	tests := []struct {
		name      string
		span      types.RawSpan
		crossLine string
		wantLine  int
		wantStart int
		wantEnd   int
		clipped   bool
	}{
		{"inside line", types.RawSpan{Start: 7, End: 12}, CrossLineClip, 1, 7, 12, false},
		{"next line", types.RawSpan{Start: 14, End: 20}, CrossLineClip, 2, 0, 6, false},
		{"into terminator clipped", types.RawSpan{Start: 7, End: 14}, CrossLineClip, 1, 7, 12, true},
		{"into terminator kept", types.RawSpan{Start: 7, End: 14}, CrossLineKeep, 1, 7, 14, false},
		{"terminator only", types.RawSpan{Start: 13, End: 14}, CrossLineClip, 1, 13, 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, clipped := Resolve(ix, chunk, tt.span, tt.crossLine)
			assert.Equal(t, tt.wantLine, hit.HitLinePosition)
			assert.Equal(t, tt.wantStart, hit.Start)
			assert.Equal(t, tt.wantEnd, hit.End)
			assert.Equal(t, tt.clipped, clipped)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	eng := &fakeEngine{}

	_, err := New(nil, DefaultConfig(), nil, nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	c, err := New(eng, Config{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c.Config())

	c, err = New(eng, Config{OnEngineError: "SKIP", CrossLine: "Keep"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OnErrorSkip, c.Config().OnEngineError)
	assert.Equal(t, CrossLineKeep, c.Config().CrossLine)

	tests := []Config{
		{Workers: -1},
		{OnEngineError: "retry"},
		{CrossLine: "split"},
	}
	for _, cfg := range tests {
		_, err := New(eng, cfg, nil, nil)
		assert.True(t, errors.Is(err, types.ErrConfiguration), "config %+v", cfg)
	}
}
