package chunker

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dshills/entityscan/internal/lineindex"
	"github.com/dshills/entityscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkText(t *testing.T, text string, size int) []types.Chunk {
	t.Helper()
	c, err := New(size)
	require.NoError(t, err)
	return c.Split(lineindex.Build(text).Lines())
}

func TestNew(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Size())

	_, err = New(0)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = New(-1)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestChunks_EmptyDocument(t *testing.T) {
	chunks := chunkText(t, "", 100)
	assert.Empty(t, chunks)
}

func TestChunks_SingleChunk(t *testing.T) {
	text := "Hans Müller wohnt in Berlin.\n"
	chunks := chunkText(t, text, 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 29, chunks[0].Length)
	assert.Equal(t, 0, chunks[0].FirstLine)
	assert.Equal(t, 0, chunks[0].LastLine)
}

func TestChunks_LinesLongerThanHalf(t *testing.T) {
	line := strings.Repeat("x", 39) + "\n" // 40 characters
	chunks := chunkText(t, line+line+line, 50)

	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, line, chunk.Text)
		assert.Equal(t, i*40, chunk.Start)
		assert.Equal(t, i, chunk.FirstLine)
		assert.Equal(t, i, chunk.LastLine)
	}
}

func TestChunks_GroupsLines(t *testing.T) {
	// 10 characters per line, 25 fits two lines per chunk
	line := "123456789\n"
	chunks := chunkText(t, strings.Repeat(line, 5), 25)

	require.Len(t, chunks, 3)
	assert.Equal(t, line+line, chunks[0].Text)
	assert.Equal(t, 20, chunks[1].Start)
	assert.Equal(t, 2, chunks[1].FirstLine)
	assert.Equal(t, 3, chunks[1].LastLine)
	assert.Equal(t, line, chunks[2].Text)
	assert.Equal(t, 40, chunks[2].Start)
}

func TestChunks_ExactFit(t *testing.T) {
	line := "123456789\n"
	chunks := chunkText(t, line+line, 20)

	require.Len(t, chunks, 1)
	assert.Equal(t, 20, chunks[0].Length)
}

func TestChunks_OverlongLineIsNotSplit(t *testing.T) {
	long := strings.Repeat("ä", 30) + "\n"
	chunks := chunkText(t, "kurz\n"+long+"kurz\n", 10)

	require.Len(t, chunks, 3)
	assert.Equal(t, "kurz\n", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Equal(t, 31, chunks[1].Length)
	assert.Equal(t, 5, chunks[1].Start)
	assert.Equal(t, "kurz\n", chunks[2].Text)
	assert.Equal(t, 36, chunks[2].Start)
}

func TestChunks_SizeSmallerThanEveryLine(t *testing.T) {
	chunks := chunkText(t, "abc\ndef\nghi", 1)

	require.Len(t, chunks, 3)
	assert.Equal(t, "abc\n", chunks[0].Text)
	assert.Equal(t, "def\n", chunks[1].Text)
	assert.Equal(t, "ghi", chunks[2].Text)
}

func TestChunks_StopEarly(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	count := 0
	for range c.Chunks(lineindex.Build("a\nb\nc\nd\n").Lines()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestChunks_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	words := []string{"Hans", "Müller", "Berlin", "GmbH", "Straße", "€", " ", "\n", "\r\n", "\n\n"}

	for round := 0; round < 200; round++ {
		var sb strings.Builder
		n := rng.IntN(80)
		for i := 0; i < n; i++ {
			sb.WriteString(words[rng.IntN(len(words))])
		}
		text := sb.String()
		size := 1 + rng.IntN(40)

		ix := lineindex.Build(text)
		chunks := chunkText(t, text, size)

		var rebuilt strings.Builder
		next := 0
		nextLine := 0
		for i, chunk := range chunks {
			require.NoError(t, chunk.Validate())
			require.Equal(t, i, chunk.Index)
			require.Equal(t, next, chunk.Start, "chunks must be contiguous")
			require.Equal(t, nextLine, chunk.FirstLine)
			require.Equal(t, ix.Offset(chunk.FirstLine), chunk.Start)
			require.Equal(t, ix.Line(chunk.LastLine).End(), chunk.End(), "chunk must end on a line boundary")

			if chunk.Length > size {
				require.Equal(t, chunk.FirstLine, chunk.LastLine, "only single lines may exceed the size")
			}
			if i+1 < len(chunks) {
				require.Greater(t, chunk.Length+ix.Line(chunk.LastLine+1).Length, size, "chunk is not maximal")
			}

			rebuilt.WriteString(chunk.Text)
			next = chunk.End()
			nextLine = chunk.LastLine + 1
		}

		require.Equal(t, text, rebuilt.String())
		require.Equal(t, ix.Length(), next)
	}
}
