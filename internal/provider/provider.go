// internal/provider/provider.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
)

// Kind names a supported hosting provider.
type Kind string

const (
	Bitbucket Kind = "bitbucket"
	GitHub    Kind = "github"
	GitLab    Kind = "gitlab"
)

// Kinds lists every supported provider in run order.
var Kinds = []Kind{Bitbucket, GitHub, GitLab}

// ErrUnknownProvider is returned for a provider name that is not one of Kinds.
var ErrUnknownProvider = errors.New("unknown provider")

// ParseKind maps a provider name to its Kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// RepoPaging describes how an adapter's repository listing paginates.
type RepoPaging struct {
	// PageSize is the requested page size; zero means only next links
	// continue the listing.
	PageSize int
	// OrderedByUpdate is set when the server returns repositories most
	// recently updated first, which allows stopping at the from date.
	OrderedByUpdate bool
	// Reverse asks for the collected list to be reversed.
	Reverse bool
	// FilteredByDate is set when the server already applied the date
	// window to the listing.
	FilteredByDate bool
}

// Adapter is the per-provider half of the counter: listing repositories
// and collecting the configured user's commits in one of them.
//
// Adapters never return errors; a failed call is logged by the fetch
// layer and yields an empty page or set.
type Adapter interface {
	Name() string
	RepositoryPaging() RepoPaging
	ListRepositoriesPage(ctx context.Context, cur paging.Cursor) (paging.Page[model.Repo], error)
	ListUserCommits(ctx context.Context, repo model.Repo) *model.CommitSet
}

// PullRequestCounter is implemented by adapters that can count the
// pull (merge) requests the configured user opened in a repository.
type PullRequestCounter interface {
	CountUserPullRequests(ctx context.Context, repo model.Repo) int
}

// New creates the adapter for kind. getter must already be rooted at the
// provider's API (see NewGetter).
func New(kind Kind, cfg config.Config, getter fetch.Getter, log logrus.FieldLogger) (Adapter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("provider", string(kind))

	switch kind {
	case Bitbucket:
		return newBitbucket(cfg, getter, log), nil
	case GitHub:
		return newGitHub(cfg, getter, log), nil
	case GitLab:
		return newGitLab(cfg, getter, log), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
}

// BaseURL returns the API root for kind. GitLab honours cfg.URL for
// self-hosted instances.
func BaseURL(kind Kind, cfg config.Config) string {
	switch kind {
	case Bitbucket:
		return bitbucketAPIBase
	case GitHub:
		return githubAPIBase
	case GitLab:
		if cfg.URL != "" {
			return GitLabAPIEndpoint(cfg.URL)
		}
		return gitlabAPIBase
	}
	return ""
}

// AuthFor picks the credential strategy for kind: a Private-Token header
// for GitLab, otherwise basic auth when a username is known and a bearer
// token when it is not.
func AuthFor(kind Kind, cfg config.Config) fetch.Auth {
	if cfg.AccessToken == "" {
		return fetch.NoAuth{}
	}
	if kind == GitLab {
		return fetch.HeaderToken{Header: "Private-Token", Token: cfg.AccessToken}
	}
	if cfg.Username == "" {
		return fetch.BearerAuth{Token: cfg.AccessToken}
	}
	return fetch.BasicAuth{Username: cfg.Username, Token: cfg.AccessToken}
}

// NewGetter builds the authenticated, rate limited fetch client for kind.
func NewGetter(kind Kind, cfg config.Config, reqPerSec float64, log logrus.FieldLogger) *fetch.Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts := []fetch.ClientOption{fetch.WithLogger(log.WithField("provider", string(kind)))}
	if kind == GitHub {
		opts = append(opts,
			fetch.WithHeader("Accept", "application/vnd.github+json"),
			fetch.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
		)
	}
	httpClient := fetch.NewHTTPClient(reqPerSec, AuthFor(kind, cfg))
	return fetch.NewClient(BaseURL(kind, cfg), httpClient, opts...)
}

// newMemo returns the per-adapter cache for identity lookups.
func newMemo() *lru.Cache {
	cache, err := lru.New(16)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return cache
}

// cachedGet fetches endpoint once per adapter; failures are not cached.
func cachedGet[T any](ctx context.Context, memo *lru.Cache, g fetch.Getter, endpoint string) (T, bool) {
	if v, ok := memo.Get(endpoint); ok {
		return v.(T), true
	}
	var out T
	if err := g.Get(ctx, endpoint, nil, &out); err != nil {
		return out, false
	}
	memo.Add(endpoint, out)
	return out, true
}

// inWindow reports whether t lies in w. Unknown dates pass; the server
// side filters already saw them.
func inWindow(w config.DateWindow, t time.Time) bool {
	return t.IsZero() || w.Contains(t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimRight(message[:i], "\r")
	}
	return message
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// containsAny reports whether s contains one of the non-empty needles.
func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
