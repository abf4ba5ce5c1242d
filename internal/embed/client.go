package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openclaw/openclaw-mem/internal/errs"
	"golang.org/x/time/rate"
)

// Config configures an embedding provider client. BaseURL follows the
// OpenAI-compatible embeddings endpoint shape used by local embedding
// servers (POST {base}/embeddings with {input, model}).
type Config struct {
	BaseURL           string
	Model             string
	APIKey            string
	Dimension         int
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxChars          int
	HeadChars         int
	MaxBytes          int
}

// Client calls an external embedding provider, clamping input per
// Config before every call and classifying failures.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New constructs a Client. A RequestsPerSecond of 0 disables throttling.
func New(cfg Config) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// tooLongPhrases are known "input too long" response-body phrases used
// to classify a 400 as EmbeddingInputTooLong rather than a generic
// provider failure.
var tooLongPhrases = []string{
	"maximum context length",
	"max context length",
	"requested",
	"please reduce the length of the messages",
}

// Embed clamps text per Config, then calls the provider. On success it
// returns the raw (un-normalized) embedding vector and the clamping
// decision. Failures are classified per §4.4: a too-long 400 maps to
// errs.ErrEmbeddingInputTooLong, anything else non-2xx or a context
// error maps to errs.ErrProviderUnavailable. Both are fail-open for the
// caller: embedding absence does not abort ingest.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, ClampResult, error) {
	clamp := Clamp(text, c.cfg.MaxChars, c.cfg.HeadChars, c.cfg.MaxBytes)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, clamp, fmt.Errorf("embed: rate limiter: %w", errs.ErrProviderUnavailable)
		}
	}

	reqBody, err := json.Marshal(embeddingRequest{Input: clamp.Text, Model: c.cfg.Model})
	if err != nil {
		return nil, clamp, fmt.Errorf("embed: marshal request: %w", errs.ErrProviderUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, clamp, fmt.Errorf("embed: build request: %w", errs.ErrProviderUnavailable)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, clamp, fmt.Errorf("embed: call provider: %w", errs.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest && looksLikeTooLong(string(body)) {
			return nil, clamp, fmt.Errorf("embed: provider rejected input length: %w", errs.ErrEmbeddingInputTooLong)
		}
		return nil, clamp, fmt.Errorf("embed: provider status %d: %w", resp.StatusCode, errs.ErrProviderUnavailable)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, clamp, fmt.Errorf("embed: decode response: %w", errs.ErrProviderUnavailable)
	}
	if len(parsed.Data) == 0 {
		return nil, clamp, fmt.Errorf("embed: empty response: %w", errs.ErrProviderUnavailable)
	}

	return parsed.Data[0].Embedding, clamp, nil
}

func looksLikeTooLong(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range tooLongPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
