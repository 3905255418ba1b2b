package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dshills/entityscan/pkg/types"
)

const (
	// RecognizePath is the NER endpoint of a Termite-compatible service
	RecognizePath = "/api/recognize"

	// DefaultModel is the recognizer requested when none is configured
	DefaultModel = "de_core_news_sm"

	// DefaultTimeout bounds a single recognize request
	DefaultTimeout = 60 * time.Second
)

// HTTPConfig configures an HTTPEngine
type HTTPConfig struct {
	URL            string
	Model          string
	Language       string   // forwarded as X-Language, empty to omit
	Labels         []string // optional label filter for zero-shot recognizers
	Timeout        time.Duration
	MaxInputLength int
	Retry          RetryConfig
}

// HTTPEngine calls a remote recognition service, one text per request
type HTTPEngine struct {
	cfg        HTTPConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

type recognizeRequest struct {
	Model  string   `json:"model"`
	Texts  []string `json:"texts"`
	Labels []string `json:"labels,omitempty"`
}

type recognizeEntity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float32 `json:"score"`
}

type recognizeResponse struct {
	Model    string              `json:"model"`
	Entities [][]recognizeEntity `json:"entities"`
}

// NewHTTPEngine creates an engine for the service at cfg.URL
func NewHTTPEngine(cfg HTTPConfig, logger *zap.Logger) (*HTTPEngine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, ErrMissingURL)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = DefaultMaxInputLength
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPEngine{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.URL, "/") + RecognizePath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

func (h *HTTPEngine) Process(ctx context.Context, text string) ([]types.RawSpan, error) {
	if err := CheckInput(text, h.cfg.MaxInputLength); err != nil {
		return nil, err
	}

	body, err := json.Marshal(recognizeRequest{
		Model:  h.cfg.Model,
		Texts:  []string{text},
		Labels: h.cfg.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attempt := 0
	entities, err := retryWithBackoff(ctx, h.cfg.Retry, func() ([]recognizeEntity, error) {
		attempt++
		ents, err := h.callAPI(ctx, body)
		if err != nil {
			h.logger.Debug("recognize request failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return ents, err
	})
	if err != nil {
		return nil, err
	}

	spans := make([]types.RawSpan, len(entities))
	for i, e := range entities {
		spans[i] = types.RawSpan{
			Start: e.Start,
			End:   e.End,
			Text:  e.Text,
			Label: e.Label,
		}
	}
	return spans, nil
}

func (h *HTTPEngine) callAPI(ctx context.Context, body []byte) ([]recognizeEntity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if h.cfg.Language != "" {
		req.Header.Set("X-Language", h.cfg.Language)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, permanent(fmt.Errorf("decode response: %w", err))
	}

	switch len(apiResp.Entities) {
	case 0:
		return nil, nil
	case 1:
		return apiResp.Entities[0], nil
	default:
		return nil, permanent(fmt.Errorf("decode response: expected 1 entity list, got %d", len(apiResp.Entities)))
	}
}

func (h *HTTPEngine) MaxInputLength() int {
	return h.cfg.MaxInputLength
}

func (h *HTTPEngine) Name() string {
	return KindHTTP + ":" + h.cfg.Model
}

func (h *HTTPEngine) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}
