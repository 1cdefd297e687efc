package fetch

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxRetries = 5

// RateLimitTransport wraps an http.RoundTripper with request pacing and
// 429 retry.
type RateLimitTransport struct {
	ReqPerSec  float64           // 0 = unlimited (retry-only)
	MaxRetries int               // 0 = defaultMaxRetries
	Base       http.RoundTripper // nil = http.DefaultTransport

	once    sync.Once
	limiter *rate.Limiter
}

func (t *RateLimitTransport) init() {
	if t.ReqPerSec > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(t.ReqPerSec), 1)
	}
}

func (t *RateLimitTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RateLimitTransport) maxRetries() int {
	if t.MaxRetries > 0 {
		return t.MaxRetries
	}
	return defaultMaxRetries
}

// RoundTrip implements http.RoundTripper with pacing and 429 retry.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.once.Do(t.init)

	for attempt := 0; ; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
		}

		resp, err := t.base().RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.maxRetries() {
			return resp, nil
		}

		// Drain and close body before retry
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(retryDelay(resp, attempt)):
		}
	}
}

// retryDelay uses the Retry-After header or exponential backoff
// (1s, 2s, 4s...).
func retryDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(ra); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// NewHTTPClient assembles the transport chain used against every provider:
// credentials first, then pacing and 429 handling.
func NewHTTPClient(reqPerSec float64, auth Auth) *http.Client {
	if auth == nil {
		auth = NoAuth{}
	}
	return &http.Client{
		Timeout:   5 * time.Minute,
		Transport: auth.Wrap(&RateLimitTransport{ReqPerSec: reqPerSec}),
	}
}
