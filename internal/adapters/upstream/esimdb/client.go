// Package esimdb is a resilient client for the eSIMDB public catalog API.
// A Session is owned by a single worker and is never shared
package esimdb

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/core/version"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
)

const (
	baseURLDefault   = "https://esimdb.com/api/client"
	defaultLocale    = "en"
	defaultTimeout   = 30 * time.Second
	defaultAttempts  = 3
	defaultRetryBase = time.Second
	defaultRetryMax  = 30 * time.Second

	// upstream pages are small; anything past this is not a catalog page
	maxBodyBytes = 16 << 20
)

// Options configures a Session
type Options struct {
	BaseURL   string
	Locale    string
	UserAgent string

	// Timeout bounds a single attempt, not the whole retry loop
	Timeout time.Duration

	// Attempts is the total number of tries per request, including the first
	Attempts  int
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Session issues upstream requests over its own connection pool
type Session struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	jit   func(n int64) int64
}

// NewSession creates a Session with defaults applied
func NewSession(o Options) *Session {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Locale == "" {
		o.Locale = defaultLocale
	}
	if o.UserAgent == "" {
		o.UserAgent = version.UserAgent()
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RetryMax <= 0 {
		o.RetryMax = defaultRetryMax
	}

	// private transport so idle connections belong to this session only
	tr := http.DefaultTransport.(*http.Transport).Clone()
	return &Session{
		http:  &http.Client{Timeout: o.Timeout, Transport: tr},
		opts:  o,
		log:   *logger.Named("esimdb"),
		now:   time.Now,
		sleep: sleepCtx,
		jit:   rand.Int64N,
	}
}

// Close releases idle connections held by the session
func (s *Session) Close() { s.http.CloseIdleConnections() }

// Locale returns the locale sent with every request
func (s *Session) Locale() string { return s.opts.Locale }

// get fetches path with bounded retries and returns the body of the first 2xx response.
// attempts reports how many requests were issued
func (s *Session) get(ctx context.Context, path string, q url.Values) (body []byte, attempts int, err error) {
	u := s.opts.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	for {
		if ctx.Err() != nil {
			return nil, attempts, perr.Canceled(ctx, "esimdb request abandoned")
		}
		attempts++

		body, status, wait, err := s.once(ctx, u)
		if err == nil {
			return body, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, perr.Canceled(ctx, "esimdb request abandoned")
		}
		if !perr.Retryable(err) || attempts >= s.opts.Attempts {
			return nil, attempts, err
		}

		back := s.backoff(attempts - 1)
		if wait > back {
			back = min(wait, s.opts.RetryMax)
		}
		s.log.Warn().
			Str("url", u).
			Int("status", status).
			Int("attempt", attempts).
			Int("attempts", s.opts.Attempts).
			Dur("retry_in", back).
			Err(err).
			Msg("esimdb request failed, retrying")
		if se := s.sleep(ctx, back); se != nil {
			return nil, attempts, perr.Canceled(ctx, "esimdb request abandoned")
		}
	}
}

// once performs a single attempt. wait is a server supplied Retry-After, if any
func (s *Session) once(ctx context.Context, u string) (body []byte, status int, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, 0, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "esimdb new request failed")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := s.now()
	resp, err := s.http.Do(req)
	lat := s.now().Sub(start)
	if err != nil {
		return nil, 0, 0, classifyTransport(err)
	}
	defer func() { _ = drainAndClose(resp.Body) }()

	s.log.Debug().
		Str("url", u).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Msg("esimdb http response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, retryAfter(resp.Header, s.now()), statusError(resp.StatusCode, string(snippet))
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, 0, classifyTransport(err)
	}
	if len(body) > maxBodyBytes {
		return nil, resp.StatusCode, 0, perr.Newf(perr.ErrorCodeJSON, "esimdb response exceeds %d bytes", maxBodyBytes)
	}
	return body, resp.StatusCode, 0, nil
}

// backoff is base doubled per attempt, capped, plus up to one base of jitter
func (s *Session) backoff(attempt int) time.Duration {
	d := s.opts.RetryBase << uint(attempt)
	if d <= 0 || d > s.opts.RetryMax {
		d = s.opts.RetryMax
	}
	if b := int64(s.opts.RetryBase); b > 0 {
		d += time.Duration(s.jit(b))
	}
	return d
}

// classifyTransport maps client.Do and body read errors to retryable codes.
// Timeouts and resets are transient; a cancelled parent is handled by the caller
func classifyTransport(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "esimdb request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "esimdb request timed out")
	}
	return perr.Wrap(err, perr.ErrorCodeUnavailable, "esimdb transport error")
}

func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
