// Package fetch is the single HTTP entry point of every provider adapter:
// an authenticated JSON GET that reports failures as *FetchError.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxErrorBody = 64 * 1024

// Getter performs an authenticated GET of endpoint and decodes the JSON
// response into out. endpoint is either relative to the provider's base
// URL or an absolute URL handed out by the provider (next links, hrefs).
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values, out any) error
}

// Client is the net/http implementation of Getter.
type Client struct {
	baseURL string
	client  *http.Client
	headers http.Header
	log     logrus.FieldLogger
}

var _ Getter = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHeader adds a header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client rooted at baseURL. A nil httpClient means an
// unauthenticated client with the default transport chain.
func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0, nil)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		client:  httpClient,
		headers: make(http.Header),
		log:     logrus.StandardLogger(),
	}
	c.headers.Set("Accept", "application/json")
	c.headers.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Getter.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := c.resolve(endpoint, params)
	if err != nil {
		return c.fail(&FetchError{Endpoint: endpoint, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.fail(&FetchError{Endpoint: u, Err: err})
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	c.log.WithField("url", u).Debug("GET")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(&FetchError{Endpoint: u, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(&FetchError{
			Endpoint:   u,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		})
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(&FetchError{
			Endpoint:   u,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		})
	}
	return nil
}

func (c *Client) resolve(endpoint string, params url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.baseURL + strings.TrimLeft(endpoint, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) fail(fe *FetchError) error {
	entry := c.log.WithField("endpoint", fe.Endpoint)
	if fe.StatusCode != 0 {
		entry = entry.WithField("status", fe.StatusCode)
	}
	if fe.Body != "" {
		entry = entry.WithField("body", fe.Body)
	}
	if fe.Err != nil {
		entry = entry.WithError(fe.Err)
	}
	entry.Errorf("Failed call to %s", fe.Endpoint)
	return fe
}
