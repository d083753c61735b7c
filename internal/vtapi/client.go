// File: internal/vtapi/client.go

// Package vtapi is a thin client for the upstream reputation API. It owns
// authentication, HTTP status mapping, and the extraction of the rate-limit
// response headers; it does not interpret response bodies beyond decoding.
package vtapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	headerAPIKey             = "x-apikey"
	headerRateLimitRemaining = "x-ratelimit-remaining"
	headerRateLimitReset     = "x-ratelimit-reset"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// RateHeaders carries the raw rate-limit header values from a response so the
// caller can feed them to the quota tracker. Empty strings mean the header
// was absent.
type RateHeaders struct {
	Remaining string
	Reset     string
}

// Client issues authenticated requests against the reputation API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *zap.Logger
}

// NewClient builds a client for the given base URL and API key. The timeout
// bounds every request; a hung upstream must not block a scan forever.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		log:        logger.Named("vtapi"),
	}
}

// Get performs an authenticated GET of endpoint (a path like "/files/abc")
// with optional query parameters, returning the raw response body and the
// rate-limit headers. Non-2xx statuses map to the package's typed errors.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, RateHeaders, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, RateHeaders{}, fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, RateHeaders{}, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	headers := RateHeaders{
		Remaining: resp.Header.Get(headerRateLimitRemaining),
		Reset:     resp.Header.Get(headerRateLimitReset),
	}

	if err := statusToError(resp.StatusCode, endpoint); err != nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil, headers, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, headers, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	c.log.Debug("Upstream request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return body, headers, nil
}

// GetJSON performs Get and decodes the body into out, returning the raw body
// alongside so callers can retain it for diagnostics.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) ([]byte, RateHeaders, error) {
	body, headers, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return nil, headers, err
	}
	if out != nil {
		if err := jsonCodec.Unmarshal(body, out); err != nil {
			return body, headers, fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}
	return body, headers, nil
}

// statusToError maps an HTTP status to the package error taxonomy.
func statusToError(status int, endpoint string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized:
		return ErrInvalidAPIKey
	default:
		return &StatusError{StatusCode: status, Endpoint: endpoint}
	}
}

// IsNotFound reports whether err represents a 404 for the indicator.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
