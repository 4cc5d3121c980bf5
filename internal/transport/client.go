// Package transport provides the HTTP client shared by the storefront and
// fulfillment integrations: authentication, JSON decoding and bounded retries
// for rate-limited or unavailable remotes.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with authentication and retries.
type Client struct {
	http       *http.Client
	auth       Authenticator
	service    string
	maxTries   uint
	initial    time.Duration
	maxBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxTries sets how many times a retryable request is attempted.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithBackoff sets the exponential backoff bounds between attempts.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		c.initial = initial
		c.maxBackoff = maxInterval
	}
}

// New creates a new transport client for the named remote service.
func New(service string, auth Authenticator, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:       &http.Client{Timeout: DefaultHTTPTimeout},
		auth:       auth,
		service:    service,
		maxTries:   constants.MaxRetries,
		initial:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the remote service name used in errors.
func (c *Client) Service() string {
	return c.service
}

// Do performs an HTTP request with authentication applied.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	c.auth.Apply(req)

	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req.WithContext(ctx))
}

// GetJSON performs a GET request and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	return c.SendJSON(ctx, http.MethodGet, url, nil, target)
}

// SendJSON performs a request with an optional JSON body and decodes the
// JSON response into target when target is non-nil. Rate limits, server
// errors and network failures are retried with exponential backoff.
func (c *Client) SendJSON(ctx context.Context, method, url string, body, target any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.WrapParse("json", "request body", err)
		}
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := newRequest(ctx, method, url, reader)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		resp, err := c.Do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			logging.Ctx(ctx).Debug().Err(err).Str("url", req.URL.Path).Int("attempt", attempt).Msg("Request failed, retrying")
			return struct{}{}, errors.WrapAPI(c.service, 0, err)
		}

		if err := DecodeResponse(resp, c.service, target); err != nil {
			if apiErr, ok := err.(*errors.APIError); ok && apiErr.Retryable() {
				logging.Ctx(ctx).Debug().Int("status", apiErr.StatusCode).Str("url", req.URL.Path).Int("attempt", attempt).Msg("Retryable response")
				return struct{}{}, apiErr
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = c.maxBackoff
	return b
}

func newRequest(ctx context.Context, method, url string, body *bytes.Reader) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, errors.NewValidationError("url", url, err.Error())
	}
	return req, nil
}
