package fetch

import (
	"net/http"

	"golang.org/x/oauth2"
)

// Auth decorates outgoing requests with provider credentials.
type Auth interface {
	Wrap(base http.RoundTripper) http.RoundTripper
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// BasicAuth sends username and token as HTTP basic credentials
// (Bitbucket app passwords, GitHub personal tokens).
type BasicAuth struct {
	Username string
	Token    string
}

func (a BasicAuth) Wrap(base http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req = req.Clone(req.Context())
		req.SetBasicAuth(a.Username, a.Token)
		return base.RoundTrip(req)
	})
}

// HeaderToken sends the token in a custom header, e.g. GitLab's
// Private-Token.
type HeaderToken struct {
	Header string
	Token  string
}

func (a HeaderToken) Wrap(base http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req = req.Clone(req.Context())
		req.Header.Set(a.Header, a.Token)
		return base.RoundTrip(req)
	})
}

// BearerAuth sends the token as an OAuth2 bearer token.
type BearerAuth struct {
	Token string
}

func (a BearerAuth) Wrap(base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.Token}),
		Base:   base,
	}
}

// NoAuth leaves requests untouched.
type NoAuth struct{}

func (NoAuth) Wrap(base http.RoundTripper) http.RoundTripper {
	return base
}
