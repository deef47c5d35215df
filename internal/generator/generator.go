// Package generator defines the external explanation-generation collaborator.
// The core treats generation as an opaque call: one emoji in, one explanation
// text out, or a failure. No retry or backoff contract is assumed here;
// callers decide how a failure maps onto request state.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrEmptyExplanation is returned when the upstream service answers 200 but
// carries no explanation text.
var ErrEmptyExplanation = errors.New("generator returned no explanation")

// Generator produces a human-readable explanation for an emoji.
// Implementations must honor ctx for cancellation and deadlines.
type Generator interface {
	Generate(ctx context.Context, emoji string) (string, error)
}

// Client calls an HTTP emoji-interpretation service. It posts the emoji as
// JSON and expects a JSON body with an "explanation" field.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a Client for the given endpoint. The timeout bounds the
// whole exchange and doubles as the per-request generation deadline when the
// caller's context carries none.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Emoji string `json:"emoji"`
}

type generateResponse struct {
	Explanation string `json:"explanation"`
}

// Generate implements Generator over HTTP. Timeouts surface as ordinary
// errors; the caller maps them onto a FAILED outcome.
func (c *Client) Generate(ctx context.Context, emoji string) (string, error) {
	body, err := json.Marshal(generateRequest{Emoji: emoji})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generator: unexpected status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Explanation == "" {
		return "", ErrEmptyExplanation
	}
	return out.Explanation, nil
}
