package metrics

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	stdurl "net/url"
	"strings"
	"time"

	"dockhand/internal/errors"
	"dockhand/internal/logger"
)

// DefaultRetryAttempts bounds how often a transient fetch failure is retried.
const DefaultRetryAttempts = 3

// Client talks to the external metrics endpoint (a Glances-style REST API).
type Client struct {
	baseURL    string
	apiVersion int
	httpClient *http.Client
	attempts   int
	log        logger.Logger

	// sleep is swapped in tests so backoff doesn't actually wait.
	sleep func(time.Duration)
}

// NewClient creates a metrics client for http://host:port with a fixed
// per-request timeout. Total worst-case latency is bounded by
// timeout*attempts plus the backoff sum.
func NewClient(host string, port, apiVersion int, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   DefaultRetryAttempts,
		log:        log,
		sleep:      time.Sleep,
	}
}

// BaseURL returns the endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch gets one API endpoint (e.g. "all", "cpu", "alert") and returns the
// raw JSON body. Connection-refused and timeout failures are retried up to
// the attempt limit with linear backoff (attempt * 1s). HTTP 4xx/5xx and
// malformed JSON are terminal: they are well-formed answers, not transience.
func (c *Client) Fetch(endpoint string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/%d/%s", c.baseURL, c.apiVersion, strings.TrimPrefix(endpoint, "/"))

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * time.Second
			c.log.Debug("metrics fetch retry %d/%d for %s after %s", attempt, c.attempts, endpoint, backoff)
			c.sleep(backoff)
		}

		body, err := c.fetchOnce(url)
		if err == nil {
			return body, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, errors.WrapWithCode(lastErr, errors.ErrMetrics,
		fmt.Sprintf("Metrics endpoint unreachable after %d attempts: %s", c.attempts, url),
		"Check the metrics service is running on the remote host.")
}

func (c *Client) fetchOnce(url string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrMetrics, "Bad metrics URL", "")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dockhand/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A status code is a deliberate answer. Never retried.
		return nil, errors.New(errors.ErrMetrics,
			fmt.Sprintf("Metrics endpoint answered %d for %s", resp.StatusCode, url), "")
	}

	if !json.Valid(body) {
		return nil, errors.New(errors.ErrMetrics,
			fmt.Sprintf("Metrics endpoint returned malformed JSON for %s", url), "")
	}
	return json.RawMessage(body), nil
}

// transientError marks connection-level failures eligible for retry.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	if !stderrors.As(err, &te) {
		return false
	}
	// Within the transient category, only connection-refused and timeouts
	// qualify; anything else (e.g. a malformed redirect) is terminal too.
	var netErr net.Error
	if stderrors.As(te.err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *stdurl.Error
	if stderrors.As(te.err, &urlErr) && urlErr.Timeout() {
		return true
	}
	msg := te.err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset")
}
