// Package upstream talks to the order backend functions.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
)

const (
	buyerOrdersPath = "/getBuyerOrders"
	maxBodyBytes    = 8 << 20
	retryBackoff    = 200 * time.Millisecond
)

var ErrUnauthorized = errors.New("upstream rejected credentials")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// BuyerOrdersQuery is the serialized query for one buyer's orders. It doubles
// as the cache query string.
func BuyerOrdersQuery(buyerID string) string {
	return url.Values{"buyerId": []string{buyerID}}.Encode()
}

// FetchBuyerOrders returns the buyer's orders as a raw JSON array.
func (c *Client) FetchBuyerOrders(ctx context.Context, token, buyerID string) (json.RawMessage, error) {
	body, err := c.get(ctx, token, buyerOrdersPath+"?"+BuyerOrdersQuery(buyerID))
	if err != nil {
		return nil, err
	}
	return extractOrders(body)
}

func (c *Client) get(ctx context.Context, token, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.do(ctx, token, path)
		if err == nil {
			metrics.UpstreamRequestsTotal.WithLabelValues("ok").Inc()
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.logger.Warn("upstream request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 400:
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			if m := msg.Get("message"); m.Exists() {
				return m.String()
			}
			return msg.String()
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256] + "...(truncated)"
	}
	return msg
}

// extractOrders accepts {"success":true,"data":{"orders":[...]}},
// {"orders":[...]}, {"data":[...]} and a bare array.
func extractOrders(body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("failed to decode response: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		return json.RawMessage(doc.Raw), nil
	}
	if s := doc.Get("success"); s.Exists() && !s.Bool() {
		return nil, &StatusError{Code: http.StatusBadGateway, Message: errorMessage(body)}
	}
	for _, path := range []string{"data.orders", "orders", "data"} {
		if v := doc.Get(path); v.IsArray() {
			return json.RawMessage(v.Raw), nil
		}
	}
	return nil, errors.New("failed to decode response: no orders array")
}
