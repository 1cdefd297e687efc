package counter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/counter"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
	"github.com/dsablic/contribcount/internal/provider"
)

type fakeAdapter struct {
	paging   provider.RepoPaging
	pages    [][]model.Repo
	commits  map[string][]model.Commit
	prs      map[string]int
	calls    int
	commitsQ []string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) RepositoryPaging() provider.RepoPaging { return f.paging }

func (f *fakeAdapter) ListRepositoriesPage(_ context.Context, cur paging.Cursor) (paging.Page[model.Repo], error) {
	f.calls++
	if cur.Page > len(f.pages) {
		return paging.Page[model.Repo]{}, nil
	}
	return paging.Page[model.Repo]{Items: f.pages[cur.Page-1]}, nil
}

func (f *fakeAdapter) ListUserCommits(_ context.Context, repo model.Repo) *model.CommitSet {
	f.commitsQ = append(f.commitsQ, repo.Key)
	set := model.NewCommitSet()
	for _, c := range f.commits[repo.Key] {
		set.Add(c)
	}
	return set
}

func (f *fakeAdapter) CountUserPullRequests(_ context.Context, repo model.Repo) int {
	return f.prs[repo.Key]
}

type recorder struct {
	updates []string
	done    int
}

func (r *recorder) Update(completed, total int, repo string) {
	r.updates = append(r.updates, fmt.Sprintf("%d/%d %s", completed, total, repo))
}

func (r *recorder) Done(total int) { r.done = total }

func commits(shas ...string) []model.Commit {
	out := make([]model.Commit, len(shas))
	for i, sha := range shas {
		out[i] = model.Commit{SHA: sha, Message: "msg " + sha}
	}
	return out
}

func newCounter(t *testing.T, adapter provider.Adapter, opts config.Options, extra ...counter.Option) *counter.Counter {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg := config.New(opts, log)
	return counter.New(adapter, cfg, append([]counter.Option{counter.WithLogger(log)}, extra...)...)
}

func marshal(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestGetMergeCommitsExcluded(t *testing.T) {
	gitlabCommit := func(id string, parents ...string) map[string]any {
		return map[string]any{
			"id":             id,
			"author_email":   "me@example.com",
			"author_name":    "Me",
			"parent_ids":     parents,
			"committed_date": "2020-02-01T00:00:00Z",
		}
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		switch r.URL.Path {
		case "/api/v4/projects":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "path": "a", "path_with_namespace": "me/a"},
				{"id": 2, "path": "b", "path_with_namespace": "me/b"},
			})
		case "/api/v4/projects/1/repository/commits":
			json.NewEncoder(w).Encode([]map[string]any{
				gitlabCommit("c1", "p"), gitlabCommit("c2", "c1"), gitlabCommit("c3", "c2"),
			})
		case "/api/v4/projects/2/repository/commits":
			json.NewEncoder(w).Encode([]map[string]any{gitlabCommit("m1", "x", "y")})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	log, _ := test.NewNullLogger()
	cfg := config.New(config.Options{
		"userEmailAddresses": []string{"me@example.com"},
		"url":                server.URL,
		"pullRequests":       false,
	}, log)
	adapter, err := provider.New(provider.GitLab, cfg, provider.NewGetter(provider.GitLab, cfg, 0, log), log)
	require.NoError(t, err)

	result := counter.New(adapter, cfg, counter.WithLogger(log)).Get(context.Background())

	assert.Equal(t, 1, result.TotalProjects, "a repository with only a merge commit does not count")
	assert.Equal(t, 3, result.TotalCommits)
	out := marshal(t, result)
	assert.EqualValues(t, 1, out["total_projects"])
	assert.EqualValues(t, 3, out["total_commits"])
	assert.EqualValues(t, 1, out["projects"], "legacy alias")
	assert.EqualValues(t, 3, out["commits"], "legacy alias")
}

func TestGetCountPerProjectMatchesCommits(t *testing.T) {
	adapter := &fakeAdapter{
		pages: [][]model.Repo{{{Key: "a/one"}, {Key: "a/two"}, {Key: "a/three"}}},
		commits: map[string][]model.Commit{
			"a/one": commits("c1", "c2"),
			"a/two": commits("c3"),
		},
	}
	c := newCounter(t, adapter, config.Options{"format": "count_per_project,commits"})

	result := c.Get(context.Background())

	assert.Equal(t, map[string]int{"a/one": 2, "a/two": 1}, result.CountPerProject)
	total := 0
	for _, n := range result.CountPerProject {
		total += n
	}
	assert.Len(t, result.Commits, total)

	out := marshal(t, result)
	assert.NotContains(t, out, "total_projects")
	assert.Len(t, out["commits"], 3)
}

func TestGetMinCommits(t *testing.T) {
	adapter := &fakeAdapter{
		pages: [][]model.Repo{{{Key: "a/one"}, {Key: "a/two"}}},
		commits: map[string][]model.Commit{
			"a/one": commits("c1", "c2"),
			"a/two": commits("c3"),
		},
	}

	result := newCounter(t, adapter, config.Options{"minCommits": 2}).Get(context.Background())
	assert.Equal(t, 1, result.TotalProjects)
	assert.Equal(t, 2, result.TotalCommits)

	// a project with zero commits never qualifies, even with minCommits 0
	adapter.commits["a/two"] = nil
	result = newCounter(t, adapter, config.Options{"minCommits": 0}).Get(context.Background())
	assert.Equal(t, 1, result.TotalProjects)
}

func TestGetProjectsWithCommits(t *testing.T) {
	adapter := &fakeAdapter{
		pages:   [][]model.Repo{{{Key: "a/one", Name: "one"}}},
		commits: map[string][]model.Commit{"a/one": commits("c1")},
	}

	result := newCounter(t, adapter, config.Options{"format": "projects_with_commits"}).Get(context.Background())
	require.Len(t, result.Projects, 1)
	assert.Len(t, result.Projects[0].Commits, 1)

	result = newCounter(t, adapter, config.Options{"format": "projects"}).Get(context.Background())
	require.Len(t, result.Projects, 1)
	assert.Empty(t, result.Projects[0].Commits)
}

func TestGetPullRequests(t *testing.T) {
	adapter := &fakeAdapter{
		pages:   [][]model.Repo{{{Key: "a/one"}, {Key: "a/two"}}},
		commits: map[string][]model.Commit{"a/one": commits("c1")},
		prs:     map[string]int{"a/one": 2, "a/two": 3},
	}

	result := newCounter(t, adapter, config.Options{}).Get(context.Background())
	assert.Equal(t, 5, result.TotalPullRequests, "pull requests count regardless of commits")

	result = newCounter(t, adapter, config.Options{"pullRequests": false}).Get(context.Background())
	assert.Zero(t, result.TotalPullRequests)
}

func TestListAllRepositoriesFullPageThenEmpty(t *testing.T) {
	full := make([]model.Repo, 3)
	for i := range full {
		full[i] = model.Repo{Key: fmt.Sprintf("a/r%d", i)}
	}
	paged := &fakeAdapter{
		paging:  provider.RepoPaging{PageSize: 3},
		pages:   [][]model.Repo{full},
		commits: map[string][]model.Commit{"a/r0": commits("c1"), "a/r2": commits("c2", "c3")},
	}
	single := &fakeAdapter{
		paging:  provider.RepoPaging{PageSize: 100},
		pages:   [][]model.Repo{full},
		commits: paged.commits,
	}

	a := newCounter(t, paged, config.Options{}).Get(context.Background())
	b := newCounter(t, single, config.Options{}).Get(context.Background())

	assert.Equal(t, 2, paged.calls, "a full page needs one more request")
	assert.Equal(t, 1, single.calls)
	assert.Equal(t, b.TotalProjects, a.TotalProjects)
	assert.Equal(t, b.TotalCommits, a.TotalCommits)
}

func TestListAllRepositoriesEarlyStop(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }
	adapter := &fakeAdapter{
		paging: provider.RepoPaging{PageSize: 2, OrderedByUpdate: true},
		pages: [][]model.Repo{
			{{Key: "a/1", UpdatedAt: day(20)}, {Key: "a/2", UpdatedAt: day(15)}},
			{{Key: "a/3", UpdatedAt: day(12)}, {Key: "a/4", UpdatedAt: day(5)}},
			{{Key: "a/5", UpdatedAt: day(3)}, {Key: "a/6", UpdatedAt: day(2)}},
		},
	}
	c := newCounter(t, adapter, config.Options{"fromDate": "2020-01-10"})

	repos := c.ListAllRepositories(context.Background())
	assert.Len(t, repos, 4)
	assert.Equal(t, 2, adapter.calls)

	// without a from date the whole listing is walked
	adapter.calls = 0
	repos = newCounter(t, adapter, config.Options{}).ListAllRepositories(context.Background())
	assert.Len(t, repos, 6)
	assert.Equal(t, 4, adapter.calls)
}

func TestListAllRepositoriesDedupAndReverse(t *testing.T) {
	adapter := &fakeAdapter{
		paging: provider.RepoPaging{PageSize: 2, Reverse: true},
		pages: [][]model.Repo{
			{{Key: "a/1"}, {Key: "a/2"}},
			{{Key: "a/2"}, {Key: "a/3"}},
		},
	}
	repos := newCounter(t, adapter, config.Options{}).ListAllRepositories(context.Background())

	var keys []string
	for _, r := range repos {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"a/3", "a/2", "a/1"}, keys)
}

func TestIsRepoWithinDate(t *testing.T) {
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{}
	c := newCounter(t, adapter, config.Options{"fromDate": "2020-01-01", "untilDate": "2020-12-31"})

	tests := []struct {
		name  string
		repo  model.Repo
		bound counter.Bound
		want  bool
	}{
		{"updated at from", model.Repo{UpdatedAt: from}, counter.From, true},
		{"updated just before from", model.Repo{UpdatedAt: from.Add(-time.Microsecond)}, counter.From, false},
		{"created at until", model.Repo{CreatedAt: until}, counter.Until, true},
		{"created just after until", model.Repo{CreatedAt: until.Add(time.Microsecond)}, counter.Until, false},
		{"unknown update", model.Repo{}, counter.From, true},
		{"unknown creation", model.Repo{}, counter.Until, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsRepoWithinDate(tt.repo, tt.bound))
		})
	}

	adapter.paging.FilteredByDate = true
	assert.True(t, c.IsRepoWithinDate(model.Repo{UpdatedAt: from.AddDate(-1, 0, 0)}, counter.From))
}

func TestGetSkipsReposOutsideWindow(t *testing.T) {
	adapter := &fakeAdapter{
		pages: [][]model.Repo{{
			{Key: "a/old", UpdatedAt: time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)},
			{Key: "a/new", CreatedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)},
			{Key: "a/in", UpdatedAt: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
		}},
		commits: map[string][]model.Commit{
			"a/old": commits("x"),
			"a/new": commits("y"),
			"a/in":  commits("z"),
		},
	}
	rec := &recorder{}
	c := newCounter(t, adapter, config.Options{"fromDate": "2020-01-01", "untilDate": "2020-12-31"}, counter.WithProgress(rec))

	result := c.Get(context.Background())

	assert.Equal(t, []string{"a/in"}, adapter.commitsQ)
	assert.Equal(t, 1, result.TotalProjects)
	assert.Equal(t, []string{"1/3 a/old", "2/3 a/new", "3/3 a/in"}, rec.updates)
	assert.Equal(t, 3, rec.done)
}

func TestGetCancelled(t *testing.T) {
	adapter := &fakeAdapter{
		pages:   [][]model.Repo{{{Key: "a/one"}}},
		commits: map[string][]model.Commit{"a/one": commits("c1")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newCounter(t, adapter, config.Options{}).Get(ctx)
	assert.Zero(t, result.TotalProjects)
	assert.Zero(t, adapter.calls)
}
