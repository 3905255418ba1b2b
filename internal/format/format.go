// Package format serializes analysis results as single-line JSON.
package format

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/dshills/entityscan/pkg/types"
)

// FileResult is one line of directory scan output
type FileResult struct {
	Path     string            `json:"path"`
	Entities []types.EntityHit `json:"entities"`
}

// Marshal renders v as compact JSON without HTML escaping and without a
// trailing newline
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalResult renders {"entities":[...]} for hits; nil hits render as []
func MarshalResult(hits []types.EntityHit) ([]byte, error) {
	return Marshal(types.NewResult(hits))
}

// WriteResult writes the result for hits as one line to w
func WriteResult(w io.Writer, hits []types.EntityHit) error {
	data, err := MarshalResult(hits)
	if err != nil {
		return err
	}
	return writeLine(w, data)
}

// WriteFileResult writes one scan line for path to w
func WriteFileResult(w io.Writer, path string, hits []types.EntityHit) error {
	if hits == nil {
		hits = []types.EntityHit{}
	}
	data, err := Marshal(FileResult{Path: path, Entities: hits})
	if err != nil {
		return err
	}
	return writeLine(w, data)
}

func writeLine(w io.Writer, data []byte) error {
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
