// Package rest provides the resilient HTTP client shared by both providers
// retry, backoff, Retry-After, client side rate limiting, and taxonomy mapping
// live here so msgraph and azdo stay thin endpoint wrappers
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxRetry  = 3
	defaultRetryBase = 1 * time.Second
	maxBackoff       = 30 * time.Second

	// bodyLimit caps how much of any response body is read
	bodyLimit = 1 << 20
	// errTail is how much body is kept in error detail
	errTail = 512
)

// Credential applies auth to an outgoing request (see adapters/auth)
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Options configures a Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration

	// MaxQPS caps outbound request rate; 0 disables the limiter
	MaxQPS float64

	Auth Credential
	HTTP *http.Client
}

// Client executes requests against one provider base URL
// the underlying connection pool is shared for the client's lifetime
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Response is the decoded-agnostic result of Do
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = "bv-time-logger"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	h := o.HTTP
	if h == nil {
		h = &http.Client{Timeout: o.Timeout}
	}
	var lim *rate.Limiter
	if o.MaxQPS > 0 {
		lim = rate.NewLimiter(rate.Limit(o.MaxQPS), 1)
	}
	return &Client{
		http:    h,
		opts:    o,
		limiter: lim,
		log:     *logger.Named("rest"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Do issues one request with auth, retries, backoff, and error mapping
// query and body are optional; body is JSON encoded unless it is a raw []byte
func (c *Client) Do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	extra http.Header,
) (*Response, error) {
	u := path
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = c.opts.BaseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "request cancelled")
		default:
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeCancelled, "request cancelled awaiting rate limiter")
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "request build failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, vs := range extra {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
		if c.opts.Auth != nil {
			if err := c.opts.Auth.Apply(ctx, req); err != nil {
				return nil, err
			}
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			mapped := mapTransportErr(ctx, err)
			if !perr.Retryable(mapped) || !c.shouldRetry(attempts) {
				return nil, mapped
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).
				Str("method", method).Str("path", path).Msg("transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeCancelled, "request cancelled during backoff")
			}
			attempts++
			continue
		}

		b, readErr := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, perr.Wrap(readErr, perr.ErrorCodeConnection, "response read failed")
		}

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("http response")

		if resp.StatusCode < 300 {
			return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
		}

		if retryableStatus(resp.StatusCode) {
			if !c.shouldRetry(attempts) {
				return nil, statusErr(resp.StatusCode, b)
			}
			wait := c.backoff(attempts)
			if ra := retryAfter(resp.Header); ra > wait {
				wait = ra
			}
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", wait).Int("attempt", attempts).
				Str("method", method).Str("path", path).Msg("retryable status backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeCancelled, "request cancelled during backoff")
			}
			attempts++
			continue
		}

		return nil, statusErr(resp.StatusCode, b)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

// retryableStatus matches the provider statuses worth another attempt
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryAfter parses the seconds form of the Retry-After header
func retryAfter(h http.Header) time.Duration {
	s := strings.TrimSpace(h.Get("Retry-After"))
	if s == "" {
		return 0
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// statusErr maps a final HTTP status to the error taxonomy with a body tail
func statusErr(status int, body []byte) error {
	tail := string(body)
	if len(tail) > errTail {
		tail = tail[len(tail)-errTail:]
	}
	tail = strings.TrimSpace(tail)

	switch {
	case status == http.StatusUnauthorized:
		return perr.Unauthorizedf("provider rejected credentials (401): %s", tail)
	case status == http.StatusForbidden:
		return perr.Forbiddenf("provider denied access (403): %s", tail)
	case status == http.StatusNotFound:
		return perr.NotFoundf("resource not found (404): %s", tail)
	case status == http.StatusTooManyRequests:
		return perr.RateLimitedf("provider rate limit exhausted (429): %s", tail)
	case status >= 500:
		return perr.Serverf("provider server error (%d): %s", status, tail)
	default:
		return perr.Newf(perr.ErrorCodeProtocol, "unexpected status %d: %s", status, tail)
	}
}

// mapTransportErr classifies transport level failures
func mapTransportErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return perr.Wrap(err, perr.ErrorCodeTimeout, "request deadline exceeded")
	default:
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			return perr.Wrap(err, perr.ErrorCodeTimeout, "request timed out")
		}
		return perr.Wrap(err, perr.ErrorCodeConnection, "request failed")
	}
}

// encodeBody turns body into bytes + content type
// []byte passes through as raw json-patch or pre-encoded content
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/json", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", perr.Wrap(err, perr.ErrorCodeInvalidInput, "request body encode failed")
		}
		return raw, "application/json", nil
	}
}

// sleepCtx sleeps for d or returns early when ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
