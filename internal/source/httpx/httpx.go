package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPError carries status/body for unexpected responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 500))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Client executes requests against the external sources with bounded retries.
type Client struct {
	http  *http.Client
	retry RetryConfig
}

func NewClient(hc *http.Client, cfg RetryConfig) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Client{http: hc, retry: cfg}
}

// Do executes the request built by buildReq, retrying network errors, 5xx,
// 408 and 429. The body is always read fully. 2xx and 304 are successes;
// any other status is returned as *HTTPError.
func (c *Client) Do(ctx context.Context, buildReq func(context.Context) (*http.Request, error)) (*http.Response, []byte, error) {
	var (
		resp *http.Response
		body []byte
	)

	bo := &retryAfterBackOff{BackOff: c.newBackOff()}
	op := func() error {
		req, err := buildReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.http.Do(req)
		if err != nil {
			if isRetryableNetErr(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		b, err := readAndClose(r.Body)
		if err != nil {
			return err
		}
		resp, body = r, b

		if (r.StatusCode >= 200 && r.StatusCode < 300) || r.StatusCode == http.StatusNotModified {
			return nil
		}

		herr := &HTTPError{Method: req.Method, URL: req.URL.String(), StatusCode: r.StatusCode, Body: b}
		if isRetryableStatus(r.StatusCode) {
			bo.next = ParseRetryAfter(r)
			return herr
		}
		return backoff.Permanent(herr)
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err != nil {
		return resp, body, err
	}
	return resp, body, nil
}

// GetJSON is a convenience wrapper over Do that unmarshals JSON.
func (c *Client) GetJSON(ctx context.Context, buildReq func(context.Context) (*http.Request, error), out any) error {
	_, body, err := c.Do(ctx, buildReq)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, snippet(body, 500))
	}
	return nil
}

func (c *Client) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retry.BaseDelay
	exp.MaxInterval = c.retry.MaxDelay
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(c.retry.MaxAttempts-1))
}

// retryAfterBackOff honors a server-supplied Retry-After once.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop || b.next <= 0 {
		return d
	}
	d, b.next = b.next, 0
	return d
}

func readAndClose(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

// ParseRetryAfter parses Retry-After header (seconds or HTTP date).
// Returns 0 when header is missing/invalid.
func ParseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
