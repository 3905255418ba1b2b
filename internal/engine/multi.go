package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/entityscan/pkg/types"
)

// MultiEngine runs several engines on the same text and concatenates their
// spans in engine order
type MultiEngine struct {
	engines []Engine
}

// NewMultiEngine combines engines; at least one is required
func NewMultiEngine(engines ...Engine) (*MultiEngine, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, ErrNoEngines)
	}
	return &MultiEngine{engines: engines}, nil
}

func (m *MultiEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	var spans []types.RawSpan
	for _, e := range m.engines {
		s, err := e.Process(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		spans = append(spans, s...)
	}
	return spans, nil
}

// MaxInputLength is the smallest limit among the combined engines
func (m *MultiEngine) MaxInputLength() int {
	limit := m.engines[0].MaxInputLength()
	for _, e := range m.engines[1:] {
		limit = min(limit, e.MaxInputLength())
	}
	return limit
}

func (m *MultiEngine) Name() string {
	names := make([]string, len(m.engines))
	for i, e := range m.engines {
		names[i] = e.Name()
	}
	return KindMulti + "(" + strings.Join(names, ",") + ")"
}

func (m *MultiEngine) Close() error {
	var errs []error
	for _, e := range m.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
