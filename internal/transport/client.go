// Package transport issues single politeness-controlled HTTP requests: per-host
// pacing, per-attempt timeout, and bounded retry with a typed failure taxonomy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/lensvault/lensvault/config"
	"github.com/lensvault/lensvault/errs"
)

// Options tunes a single Fetch call. The zero value requests a plain GET with
// the default retry policy.
type Options struct {
	Method string
	Header http.Header

	// RetryNotFound opts 404 responses into the retry budget. Off by default
	// because a missing page will not materialise by refetching.
	RetryNotFound bool

	// Retryable overrides the per-failure-class retry policy when non-nil.
	Retryable func(code errs.Code) bool
}

// Client is the shared HTTP transport. Its pacing map is process-lifetime
// state owned by one resolution engine and disposed via Reset.
type Client struct {
	cfg  config.TransportSettings
	http *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a transport client from the provided settings.
func New(cfg config.TransportSettings) *Client {
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}
	if cfg.MaxRequestRetries < 0 {
		cfg.MaxRequestRetries = 0
	}
	return &Client{
		cfg:      cfg,
		http:     new(http.Client),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch issues the request with pacing, timeout, and retry applied, returning
// the response body or the most specific accumulated failure.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errs.New(errs.CodeInvalidURL,
			errs.WithURL(rawURL),
			errs.WithMessage("cannot resolve request host"),
			errs.WithCause(err))
	}

	attempts := c.cfg.MaxRequestRetries + 1
	wait := backoff.NewConstantBackOff(c.cfg.FailedRequestDelay)

	var last *errs.E
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, wait.NextBackOff()); err != nil {
				break
			}
		}
		if err := c.pace(ctx, u.Host); err != nil {
			last = errs.New(errs.CodeRequest,
				errs.WithURL(rawURL),
				errs.WithMessage("host pacing interrupted: "+err.Error()),
				errs.WithCause(asErr(last)))
			break
		}
		body, failure := c.attempt(ctx, rawURL, opts, asErr(last))
		recordAttempt(ctx, u.Host, failure)
		if failure == nil {
			return body, nil
		}
		last = failure
		if !c.shouldRetry(failure.Code, opts) {
			break
		}
	}
	if last == nil {
		last = errs.New(errs.CodeRequest, errs.WithURL(rawURL), errs.WithMessage("request failed"))
	}
	return nil, last
}

// attempt performs one bounded HTTP exchange. prior, when non-nil, becomes the
// cause of any failure so retries form a chain.
func (c *Client) attempt(ctx context.Context, rawURL string, opts *Options, prior error) ([]byte, *errs.E) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.CodeInvalidURL,
			errs.WithURL(rawURL),
			errs.WithMessage("create request: "+err.Error()),
			errs.WithCause(prior))
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for key, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return nil, errs.New(errs.CodeTimeout,
				errs.WithURL(rawURL),
				errs.WithMessage(fmt.Sprintf("request exceeded %s", c.cfg.ConnectionTimeout)),
				errs.WithCause(chainCause(err, prior)))
		}
		return nil, errs.New(errs.CodeRequest,
			errs.WithURL(rawURL),
			errs.WithMessage("perform request: "+err.Error()),
			errs.WithCause(prior))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.New(errs.CodeNotFound,
			errs.WithURL(rawURL),
			errs.WithHTTP(resp.StatusCode),
			errs.WithCause(prior))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.CodeHTTPStatus,
			errs.WithURL(rawURL),
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage(http.StatusText(resp.StatusCode)),
			errs.WithCause(prior))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return nil, errs.New(errs.CodeTimeout,
				errs.WithURL(rawURL),
				errs.WithMessage("response read exceeded timeout"),
				errs.WithCause(chainCause(err, prior)))
		}
		return nil, errs.New(errs.CodeRequest,
			errs.WithURL(rawURL),
			errs.WithMessage("read response body: "+err.Error()),
			errs.WithCause(prior))
	}
	return body, nil
}

// pace blocks until the per-host interval has elapsed. The limiter reserves
// its slot at wait time, so pacing accounts for attempt start, and concurrent
// callers against one host serialise on the shared limiter.
func (c *Client) pace(ctx context.Context, host string) error {
	if c.cfg.MinRequestDelay <= 0 {
		return nil
	}
	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.cfg.MinRequestDelay), 1)
		c.limiters[host] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

func (c *Client) shouldRetry(code errs.Code, opts *Options) bool {
	if opts.Retryable != nil {
		return opts.Retryable(code)
	}
	switch code {
	case errs.CodeNotFound:
		return opts.RetryNotFound
	case errs.CodeInvalidURL:
		return false
	default:
		return true
	}
}

// Reset drains the host-pacing state. Part of engine disposal.
func (c *Client) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.limiters = make(map[string]*rate.Limiter)
	c.mu.Unlock()
}

// asErr converts a possibly-nil typed failure into a plain error without
// producing a non-nil interface around a nil pointer.
func asErr(e *errs.E) error {
	if e == nil {
		return nil
	}
	return e
}

// chainCause keeps the retry chain typed: once a prior failure exists it is
// the cause; the raw error only leads the chain on the first attempt.
func chainCause(err, prior error) error {
	if prior != nil {
		return prior
	}
	return err
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
