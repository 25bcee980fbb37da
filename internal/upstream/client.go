// Package upstream is the JSON-over-HTTP plumbing shared by the price oracle,
// the Merkle client, the Aptos client and the bot's API client.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/traderadar/backend/internal/apperr"
)

const (
	maxResponseBytes = 16 << 20
	defaultUserAgent = "traderadar-backend/1.0"
)

type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	header    http.Header
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		header:    make(http.Header),
	}
}

// WithHeader sets a header sent on every request, e.g. an API key.
func (c *Client) WithHeader(key, value string) *Client {
	if strings.TrimSpace(value) != "" {
		c.header.Set(key, value)
	}
	return c
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, destination any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, destination)
}

func (c *Client) PostJSON(ctx context.Context, path string, body any, destination any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.E(apperr.KindInternal, "encode request body", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, payload, destination)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, destination any) error {
	op := method + " " + endpoint

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperr.E(apperr.KindInternal, op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.E(apperr.KindUpstream, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.E(apperr.KindUpstream, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.Errorf(apperr.KindNotFound, op, "request failed (%d): %s", resp.StatusCode, truncate(raw))
	case resp.StatusCode == http.StatusBadRequest:
		return apperr.Errorf(apperr.KindInvalid, op, "request failed (%d): %s", resp.StatusCode, truncate(raw))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperr.Errorf(apperr.KindUpstream, op, "request failed (%d): %s", resp.StatusCode, truncate(raw))
	}

	if destination == nil {
		return nil
	}
	if err := json.Unmarshal(raw, destination); err != nil {
		return apperr.E(apperr.KindUpstream, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(raw []byte) string {
	const limit = 512
	text := strings.TrimSpace(string(raw))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
