// Package classifier calls the external NACE prediction service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nace-crawler/internal/metrics"
	"github.com/JakeFAU/nace-crawler/internal/nace"
)

// DefaultURL is where the prediction service listens when run locally.
const DefaultURL = "http://localhost:5000/predict"

const maxResponseBytes = 1 << 20

// Config configures the client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts paragraphs to the prediction service.
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. A nil httpClient gets one with cfg.Timeout (default 30s).
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{url: cfg.URL, http: httpClient, logger: logger}
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Predictions []nace.Prediction `json:"predictions"`
}

// Predict returns the predictions for text with InputData set to text. Blank text skips the
// call. Any failure is logged and yields an empty list.
func (c *Client) Predict(ctx context.Context, text string) nace.PredictionList {
	if strings.TrimSpace(text) == "" {
		return nace.PredictionList{}
	}
	list := nace.PredictionList{InputData: text}
	preds, err := c.predict(ctx, text)
	if err != nil {
		metrics.ObserveClassifierCall("error")
		c.logger.Warn("classifier call failed", zap.Int("text_len", len(text)), zap.Error(err))
		return list
	}
	metrics.ObserveClassifierCall("success")
	list.Predictions = preds
	return list
}

// PredictAll classifies every paragraph of one document into a set. Empty results are dropped.
func (c *Client) PredictAll(ctx context.Context, paragraphs []string) nace.PredictionSet {
	var set nace.PredictionSet
	for _, p := range paragraphs {
		if ctx.Err() != nil {
			break
		}
		list := c.Predict(ctx, p)
		if list.InputData == "" {
			continue
		}
		set.Add(list)
	}
	return set
}

func (c *Client) predict(ctx context.Context, text string) ([]nace.Prediction, error) {
	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}
	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for i := range out.Predictions {
		out.Predictions[i].InputData = text
	}
	return out.Predictions, nil
}
