package deviceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/version"
)

const (
	// DefaultPort is the matrix web interface port
	DefaultPort = 80

	// DefaultTimeout bounds one snapshot request
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 1

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// snapshotTag selects the full parameter set in the CGI request body
	snapshotTag = "ptn"

	// The web UI posts with this content type; the CGI ignores others.
	snapshotContentType = "application/javascript"
)

// Client talks to the matrix web interface's parameter CGI
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.1.50:80")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	host string
}

// NewClient creates a client for the device at host:port
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	c := NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
	c.host = host
	return c
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		host:          host,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// SnapshotPath returns the CGI path for a model, e.g.
// "/cgi-bin/MUH44TP_getsetparams.cgi".
func SnapshotPath(m protocol.Model) string {
	return "/cgi-bin/MUH" + m.PathSegment() + "TP_getsetparams.cgi"
}

// FetchSnapshot requests the full parameter set and decodes it for model m
func (c *Client) FetchSnapshot(ctx context.Context, m protocol.Model) (*matrix.Snapshot, error) {
	fields, err := c.FetchFields(ctx, m)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(m, fields)
}

// FetchFields requests the full parameter set and returns the raw key/value
// pairs. Transport failures are retried; decode failures are not.
func (c *Client) FetchFields(ctx context.Context, m protocol.Model) (Fields, error) {
	if !m.Valid() {
		return nil, deviceerr.NewValidationError(fmt.Sprintf("unknown model %d", int(m)))
	}

	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, deviceerr.NewNetworkError(c.host, "snapshot request cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}

			currentDelay *= 2
			if c.MaxRetryDelay > 0 && currentDelay > c.MaxRetryDelay {
				currentDelay = c.MaxRetryDelay
			}
		}

		fields, err := c.fetchAttempt(ctx, m)
		if err == nil {
			return fields, nil
		}

		lastErr = err
		if !deviceerr.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetchAttempt performs a single snapshot request
func (c *Client) fetchAttempt(ctx context.Context, m protocol.Model) (Fields, error) {
	endpoint := c.BaseURL + SnapshotPath(m)
	body := url.Values{"tag": {snapshotTag}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, deviceerr.NewNetworkError(c.host, "failed to create snapshot request", err)
	}
	req.Header.Set("Content-Type", snapshotContentType)
	req.Header.Set("User-Agent", version.UserAgent())

	logging.LogDeviceRequest(req.Method, endpoint, body)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, deviceerr.NewNetworkError(c.host, "snapshot request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, deviceerr.NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deviceerr.NewNetworkError(c.host, "failed to read snapshot reply", err)
	}
	logging.LogDeviceResponse(endpoint, resp.StatusCode, data)

	return ParseReply(data)
}

// ParseReply strips the reply envelope and decodes the key/value pairs
func ParseReply(data []byte) (Fields, error) {
	cleaned, err := CleanReply(data)
	if err != nil {
		return nil, deviceerr.NewDecodeError("failed to clean snapshot reply", err)
	}

	var fields Fields
	if err := json.Unmarshal(cleaned, &fields); err != nil {
		return nil, deviceerr.NewDecodeError("failed to parse snapshot reply", err)
	}
	return fields, nil
}
