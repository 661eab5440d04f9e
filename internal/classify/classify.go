// Package classify implements a zero-shot label classifier backed by an
// HTTP inference service.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is a single (label, score) pair returned by the classifier.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores a text against candidate label values.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]Result, error)
}

// Client implements Classifier against an inference endpoint.
type Client struct {
	endpoint string
	model    string
	client   *http.Client
}

var _ Classifier = (*Client)(nil)

// New creates a classifier client for the given endpoint and model.
func New(endpoint, model string) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Classify posts the text and candidate labels to the inference service and
// returns results in service order, which is descending by score.
func (c *Client) Classify(ctx context.Context, text string, labels []string) ([]Result, error) {
	payload := map[string]any{
		"model":  c.model,
		"text":   text,
		"labels": labels,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/label", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify: unexpected status %d", resp.StatusCode)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}
