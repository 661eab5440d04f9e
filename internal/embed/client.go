// Package embed builds and persists the semantic embedding index over
// stored article titles.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Encoder converts texts into embedding vectors.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Client implements Encoder against an HTTP inference service.
type Client struct {
	endpoint string
	model    string
	client   *http.Client
}

var _ Encoder = (*Client)(nil)

// NewClient creates an embedding client for the given endpoint and model.
func NewClient(endpoint, model string) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Encode posts all texts in one bulk request and returns one vector per
// input text, in input order.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": c.model,
		"texts": texts,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encode: unexpected status %d", resp.StatusCode)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("encode: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}
