package engine

import (
	"context"
	"strings"

	"github.com/dshills/entityscan/pkg/types"
)

// Normalized entity labels
const (
	LabelPerson       = "PER"
	LabelLocation     = "LOC"
	LabelOrganization = "ORG"
	LabelMisc         = "MISC"
)

// NormalizeLabel maps the label variants used by common NER models onto
// PER, LOC, ORG and MISC. Other labels are returned unchanged.
func NormalizeLabel(label string) string {
	switch strings.ToUpper(label) {
	case "PER", "PERSON":
		return LabelPerson
	case "LOC", "LOCATION", "GPE":
		return LabelLocation
	case "ORG", "ORGANIZATION":
		return LabelOrganization
	case "MISC":
		return LabelMisc
	default:
		return label
	}
}

// normalizingEngine rewrites span labels with NormalizeLabel
type normalizingEngine struct {
	Engine
}

// WithNormalizedLabels wraps engine so reported labels are normalized
func WithNormalizedLabels(engine Engine) Engine {
	return &normalizingEngine{Engine: engine}
}

// Unwrap returns the wrapped engine
func (n *normalizingEngine) Unwrap() Engine {
	return n.Engine
}

func (n *normalizingEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	spans, err := n.Engine.Process(ctx, text)
	if err != nil {
		return nil, err
	}
	for i := range spans {
		spans[i].Label = NormalizeLabel(spans[i].Label)
	}
	return spans, nil
}
