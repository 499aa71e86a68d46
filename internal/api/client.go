// Package api is the single chokepoint for outbound HTTP calls: it reads
// the current bearer token at call time, builds headers and query params,
// serialises JSON bodies, and normalises failures into the typed error
// taxonomy (domain.APIError for protocol failures, domain.TransportError
// for network-level ones). It performs no retries; retry policy belongs to
// the calling layer so reads and writes can be treated differently.
package api

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

	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/core/ports"
	"github.com/lt-jshipley/appcore/internal/metrics"
)

// Options tunes a single request. All fields are optional.
type Options struct {
	// Params are appended to the URL as an encoded query string.
	Params url.Values
	// Headers overlay the computed defaults. A caller-supplied
	// Authorization header wins over the session token.
	Headers http.Header
	// Body is JSON-serialised when non-nil.
	Body any
}

// Client issues requests against a fixed base origin.
type Client struct {
	base  *url.URL
	doer  ports.Doer
	token ports.TokenSource
	log   zerolog.Logger
}

// NewClient builds a Client. token may be nil for a client that never
// authenticates (e.g. a health prober).
func NewClient(baseURL string, doer ports.Doer, token ports.TokenSource, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", baseURL, err)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{base: base, doer: doer, token: token, log: log}, nil
}

// Do issues a request and decodes the 2xx response body into out (skipped
// when out is nil or the response has no content). Non-2xx responses fail
// with *domain.APIError; requests that got no response at all fail with
// *domain.TransportError.
func (c *Client) Do(ctx context.Context, method, path string, opts *Options, out any) error {
	if opts == nil {
		opts = &Options{}
	}

	req, err := c.build(ctx, method, path, opts)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "transport").Inc()
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed before a response")
		return &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.protocolError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Get issues a GET with optional query params.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, &Options{Params: params}, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, &Options{Body: body}, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, &Options{Body: body}, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, &Options{Body: body}, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) build(ctx context.Context, method, path string, opts *Options) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(opts.Params) > 0 {
		u.RawQuery = opts.Params.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		raw, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", method, path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// Token is read here, at call time, never at construction time: a token
	// rotated mid-session is honoured by the very next call.
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	// Caller headers overlay the defaults, Authorization included — an
	// explicit caller value is an explicit intent.
	for name, values := range opts.Headers {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	return req, nil
}

// errorEnvelope is the backend's error body: {message, errors?}.
type errorEnvelope struct {
	Message string `json:"message"`
}

func (c *Client) protocolError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env errorEnvelope
	// A non-JSON error body is tolerated: the envelope stays empty and the
	// status text carries the message.
	_ = json.Unmarshal(raw, &env)

	msg := env.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	apiErr := &domain.APIError{Status: resp.StatusCode, Message: msg}
	if len(raw) > 0 {
		apiErr.Body = json.RawMessage(raw)
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("path", path).
		Msg("request rejected")

	return apiErr
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
