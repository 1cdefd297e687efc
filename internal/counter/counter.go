// Package counter aggregates one user's contributions on a single
// provider: it lists repositories, collects the user's commits in each
// and folds them into the requested output shapes.
package counter

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
	"github.com/dsablic/contribcount/internal/provider"
)

// Progress observes an aggregation run.
type Progress interface {
	Update(completed, total int, repo string)
	Done(total int)
}

type noProgress struct{}

func (noProgress) Update(int, int, string) {}
func (noProgress) Done(int)                {}

// Bound selects which side of the date window a repository is tested
// against.
type Bound int

const (
	// From tests the repository's last update against the lower bound.
	From Bound = iota
	// Until tests the repository's creation against the upper bound.
	Until
)

// Counter runs the aggregation for one provider adapter.
type Counter struct {
	adapter  provider.Adapter
	cfg      config.Config
	log      logrus.FieldLogger
	progress Progress
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger sets the logger per-repository results are reported to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Counter) {
		c.log = log
	}
}

// WithProgress sets the observer notified after every repository.
func WithProgress(p Progress) Option {
	return func(c *Counter) {
		c.progress = p
	}
}

// New creates a Counter over adapter.
func New(adapter provider.Adapter, cfg config.Config, opts ...Option) *Counter {
	c := &Counter{
		adapter:  adapter,
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		progress: noProgress{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("provider", adapter.Name())
	return c
}

// ListAllRepositories pages through the adapter's repository listing.
// When the provider orders by update time and a from date is set, the
// listing stops after the first page whose last repository was updated
// before it. Repositories repeated across pages are kept once.
func (c *Counter) ListAllRepositories(ctx context.Context) []model.Repo {
	rp := c.adapter.RepositoryPaging()
	earlyExit := rp.OrderedByUpdate && c.cfg.Window.From != nil

	seen := make(map[string]bool)
	var repos []model.Repo

	walker := paging.Walker[model.Repo]{
		PageSize: rp.PageSize,
		Fetch:    c.adapter.ListRepositoriesPage,
	}
	state := walker.Walk(ctx, func(page []model.Repo) bool {
		for _, r := range page {
			if r.Key != "" {
				if seen[r.Key] {
					continue
				}
				seen[r.Key] = true
			}
			repos = append(repos, r)
		}

		if !earlyExit {
			return false
		}
		last := page[len(page)-1].UpdatedAt
		return !last.IsZero() && c.cfg.Window.BeforeFrom(last)
	})

	if rp.Reverse {
		for i, j := 0, len(repos)-1; i < j; i, j = i+1, j-1 {
			repos[i], repos[j] = repos[j], repos[i]
		}
	}

	c.log.WithField("state", state.String()).Debugf("Found %d repositories", len(repos))
	return repos
}

// IsRepoWithinDate reports whether repo can hold commits inside the
// window: updated no earlier than the from date, created no later than
// the until date. Unknown timestamps pass, and so does everything when
// the provider already filtered the listing.
func (c *Counter) IsRepoWithinDate(repo model.Repo, bound Bound) bool {
	if c.adapter.RepositoryPaging().FilteredByDate {
		return true
	}

	switch bound {
	case From:
		if repo.UpdatedAt.IsZero() {
			return true
		}
		return !c.cfg.Window.BeforeFrom(repo.UpdatedAt)
	case Until:
		if repo.CreatedAt.IsZero() {
			return true
		}
		return !c.cfg.Window.AfterUntil(repo.CreatedAt)
	}
	return true
}

// Get runs the aggregation. It never fails: anything a provider could not
// deliver is simply missing from the result.
func (c *Counter) Get(ctx context.Context) model.Result {
	result := model.NewResult(c.cfg.Formats)

	prCounter, countPullRequests := c.adapter.(provider.PullRequestCounter)
	countPullRequests = countPullRequests && c.cfg.PullRequests

	repos := c.ListAllRepositories(ctx)
	for i, repo := range repos {
		if ctx.Err() != nil {
			c.log.WithError(ctx.Err()).Warn("Aggregation cancelled")
			break
		}

		if !c.IsRepoWithinDate(repo, From) || !c.IsRepoWithinDate(repo, Until) {
			c.log.WithField("repo", repo.Key).Debug("Repository outside date window, skipping")
			c.progress.Update(i+1, len(repos), repo.Key)
			continue
		}

		commits := c.adapter.ListUserCommits(ctx, repo).List()
		c.log.WithField("repo", repo.Key).Infof("%d commits on %s by user", len(commits), repo.Key)

		if len(commits) > 0 && len(commits) >= c.cfg.MinCommits {
			result.AddProject(repo, commits)
		}

		if countPullRequests {
			n := prCounter.CountUserPullRequests(ctx, repo)
			if n > 0 {
				c.log.WithField("repo", repo.Key).Debugf("%d pull requests on %s by user", n, repo.Key)
			}
			result.AddPullRequests(n)
		}

		c.progress.Update(i+1, len(repos), repo.Key)
	}
	c.progress.Done(len(repos))

	return *result
}
