package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityscan/pkg/types"
)

func TestWriteResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, nil))
	assert.Equal(t, "{\"entities\":[]}\n", buf.String())
}

func TestWriteResult_Hit(t *testing.T) {
	hits := []types.EntityHit{{
		Text:            "Hans Müller",
		Label:           "PER",
		HitLinePosition: 0,
		Start:           0,
		End:             11,
		HitLine:         "Hans Müller wohnt in Berlin.",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, hits))

	want := `{"entities":[{"text":"Hans Müller","label":"PER","hit_line_position":0,"start":0,"end":11,` +
		`"prev_line":null,"hit_line":"Hans Müller wohnt in Berlin.","next_line":null}]}` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	prev := "<b>Tom & Jerry</b>"
	data, err := MarshalResult([]types.EntityHit{{Text: "Tom & Jerry", Label: "PER", PrevLine: &prev}})
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"text":"Tom & Jerry"`)
	assert.Contains(t, s, `"prev_line":"<b>Tom & Jerry</b>"`)
	assert.NotContains(t, s, `\u0026`)
	assert.False(t, strings.HasSuffix(s, "\n"))
}

func TestMarshal_SingleLine(t *testing.T) {
	line := "Zeile mit\tTab"
	data, err := MarshalResult([]types.EntityHit{{Text: "x", HitLine: line}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")
	assert.Contains(t, string(data), `Zeile mit\tTab`)
}

func TestWriteFileResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFileResult(&buf, "docs/a.txt", nil))
	assert.Equal(t, "{\"path\":\"docs/a.txt\",\"entities\":[]}\n", buf.String())
}
