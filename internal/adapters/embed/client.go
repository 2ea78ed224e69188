// Package embed is the HTTP client for the embedding backend, treated as an
// opaque function from text to a fixed-dimension vector.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/continuity/internal/ports"
)

// DefaultTimeout bounds one backend call. There is no retry: a slow or
// unreachable backend degrades the caller's contribution instead of stalling
// the assembly.
const DefaultTimeout = 8 * time.Second

type Config struct {
	BaseURL string
	Model   string
	// Dim is the expected vector dimension; zero disables the check.
	Dim     int
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	model      string
	dim        int
	httpClient *http.Client
}

var _ ports.Embedder = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("embedding base URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dim:        cfg.Dim,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
	Dim   int      `json:"dim,omitempty"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: []string{text}, Model: c.model, Dim: c.dim})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding backend returned no vector")
	}
	if c.dim > 0 && len(vectors[0]) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vectors[0]), c.dim)
	}
	return vectors[0], nil
}
