// Package orthanc talks to an Orthanc PACS over its REST API and watches it
// for patients that have not been processed yet.
package orthanc

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

	"github.com/sethvargo/go-retry"
)

// ErrStatus is wrapped when the server answers with an unexpected status
var ErrStatus = errors.New("unexpected response status")

// Client is a minimal Orthanc REST client
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	backoff    time.Duration
	maxRetries uint64
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the Fibonacci backoff base and the retry count for
// transient failures
func WithRetry(base time.Duration, maxRetries uint64) ClientOption {
	return func(c *Client) {
		c.backoff = base
		c.maxRetries = maxRetries
	}
}

// NewClient creates a client for the server at baseURL. Empty credentials
// disable basic auth.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		backoff:    time.Second,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPatients lists the identifiers of every patient on the server
func (c *Client) GetPatients(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/patients")
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("decode patient list: %w", err)
	}
	return ids, nil
}

// DownloadArchive fetches the zip archive of one patient
func (c *Client) DownloadArchive(ctx context.Context, patientID string) ([]byte, error) {
	return c.get(ctx, "/patients/"+url.PathEscape(patientID)+"/archive")
}

// get retries network errors and 5xx answers. Other statuses fail at once.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			statusErr := fmt.Errorf("%w: GET %s: %s", ErrStatus, path, resp.Status)
			if resp.StatusCode >= 500 {
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
