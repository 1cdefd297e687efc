// internal/provider/github.go
package provider

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
)

const githubAPIBase = "https://api.github.com/"

const githubDefaultAffiliation = "owner,collaborator,organization_member"

// githubAdapter implements Adapter for GitHub.
type githubAdapter struct {
	cfg config.Config
	get fetch.Getter
	log logrus.FieldLogger

	// filteredByAuthorInAPI is set when only a username identifies the
	// user, so commit listings are filtered server side with author=.
	filteredByAuthorInAPI bool
}

func newGitHub(cfg config.Config, getter fetch.Getter, log logrus.FieldLogger) *githubAdapter {
	return &githubAdapter{
		cfg:                   cfg,
		get:                   getter,
		log:                   log,
		filteredByAuthorInAPI: len(cfg.UserEmailAddresses) == 0 && len(cfg.UserNames) == 0,
	}
}

func (g *githubAdapter) Name() string { return string(GitHub) }

func (g *githubAdapter) RepositoryPaging() RepoPaging {
	return RepoPaging{PageSize: g.cfg.ItemsPerPage, OrderedByUpdate: true}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type githubRepo struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Description   string     `json:"description"`
	Owner         githubUser `json:"owner"`
	HTMLURL       string     `json:"html_url"`
	Private       bool       `json:"private"`
	DefaultBranch string     `json:"default_branch"`
	CreatedAt     string     `json:"created_at"`
	PushedAt      string     `json:"pushed_at"`
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
		Committer struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
	Author  *githubUser `json:"author"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
}

type githubBranch struct {
	Name string `json:"name"`
}

type githubCompare struct {
	Status  string         `json:"status"`
	Commits []githubCommit `json:"commits"`
}

type githubPullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	User      githubUser `json:"user"`
	CreatedAt string     `json:"created_at"`
}

func (g *githubAdapter) pageParams(page int) url.Values {
	return url.Values{
		"per_page": {strconv.Itoa(g.cfg.ItemsPerPage)},
		"page":     {strconv.Itoa(page)},
	}
}

// ListRepositoriesPage lists the user's repositories, most recently
// pushed first.
func (g *githubAdapter) ListRepositoriesPage(ctx context.Context, cur paging.Cursor) (paging.Page[model.Repo], error) {
	affiliation := g.cfg.MinRepoRole
	if affiliation == "" {
		affiliation = githubDefaultAffiliation
	}
	params := g.pageParams(cur.Page)
	params.Set("affiliation", affiliation)
	params.Set("sort", "pushed")
	params.Set("direction", "desc")

	var resp []githubRepo
	if err := g.get.Get(ctx, "user/repos", params, &resp); err != nil {
		return paging.Page[model.Repo]{}, err
	}

	repos := make([]model.Repo, 0, len(resp))
	for _, r := range resp {
		repos = append(repos, model.Repo{
			Key:             r.FullName,
			ID:              strconv.FormatInt(r.ID, 10),
			Name:            r.Name,
			FullName:        r.FullName,
			Description:     r.Description,
			Owner:           r.Owner.Login,
			URL:             r.HTMLURL,
			Provider:        string(GitHub),
			DefaultBranch:   r.DefaultBranch,
			Private:         r.Private,
			CreatedAt:       parseTime(r.CreatedAt),
			UpdatedAt:       parseTime(r.PushedAt),
			CommitsURL:      "repos/" + r.FullName + "/commits",
			PullRequestsURL: "repos/" + r.FullName + "/pulls",
		})
	}
	return paging.Page[model.Repo]{Items: repos}, nil
}

// ListUserCommits collects the user's commits across every branch. The
// default branch is listed with server side filters; other branches only
// contribute the commits a compare against the default branch reports as
// their own.
func (g *githubAdapter) ListUserCommits(ctx context.Context, repo model.Repo) *model.CommitSet {
	set := model.NewCommitSet()
	if g.filteredByAuthorInAPI && g.cfg.Username == "" {
		return set
	}
	branches := g.branches(ctx, repo)

	if repo.DefaultBranch == "" {
		for _, branch := range branches {
			g.walkBranch(ctx, repo, branch, set)
		}
		return set
	}

	g.walkBranch(ctx, repo, repo.DefaultBranch, set)
	for _, branch := range branches {
		if branch == repo.DefaultBranch {
			continue
		}
		if !g.walkCompare(ctx, repo, branch, set) {
			g.log.WithFields(logrus.Fields{"repo": repo.Key, "branch": branch}).
				Debug("Compare failed, listing branch in full")
			g.walkBranch(ctx, repo, branch, set)
		}
	}
	return set
}

func (g *githubAdapter) branches(ctx context.Context, repo model.Repo) []string {
	walker := paging.Walker[githubBranch]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[githubBranch], error) {
			var resp []githubBranch
			err := g.get.Get(ctx, "repos/"+repo.Key+"/branches", g.pageParams(cur.Page), &resp)
			return paging.Page[githubBranch]{Items: resp}, err
		},
	}

	var names []string
	for _, b := range walker.Collect(ctx) {
		names = append(names, b.Name)
	}
	return names
}

// walkBranch lists a branch's commits with the window (and, when only a
// username is known, the author) filtered by the API. The API window is
// widened to whole seconds, so commit dates are checked again here.
func (g *githubAdapter) walkBranch(ctx context.Context, repo model.Repo, branch string, set *model.CommitSet) {
	walker := paging.Walker[githubCommit]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[githubCommit], error) {
			params := g.pageParams(cur.Page)
			params.Set("sha", branch)
			if from := g.cfg.Window.FromParam(); from != "" {
				params.Set("since", from)
			}
			if until := g.cfg.Window.UntilParam(); until != "" {
				params.Set("until", until)
			}
			if g.filteredByAuthorInAPI {
				params.Set("author", g.cfg.Username)
			}

			var resp []githubCommit
			err := g.get.Get(ctx, repo.CommitsURL, params, &resp)
			return paging.Page[githubCommit]{Items: resp}, err
		},
	}

	walker.Walk(ctx, func(commits []githubCommit) bool {
		for _, c := range commits {
			commit := g.toCommit(c)
			if set.Has(commit.SHA) || commit.IsMerge() || !inWindow(g.cfg.Window, commit.CommittedAt) {
				continue
			}
			if g.filteredByAuthorInAPI || g.isCommitter(c) {
				set.Add(commit)
			}
		}
		return false
	})
}

// walkCompare adds the commits unique to branch. Compare results are not
// filtered by the API, so the window and author are checked here. It
// reports false when the first compare request fails.
func (g *githubAdapter) walkCompare(ctx context.Context, repo model.Repo, branch string, set *model.CommitSet) bool {
	failed := false
	endpoint := "repos/" + repo.Key + "/compare/" +
		url.PathEscape(repo.DefaultBranch) + "..." + url.PathEscape(branch)

	walker := paging.Walker[githubCommit]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[githubCommit], error) {
			var resp githubCompare
			err := g.get.Get(ctx, endpoint, g.pageParams(cur.Page), &resp)
			if err != nil && cur.Page == 1 {
				failed = true
			}
			return paging.Page[githubCommit]{Items: resp.Commits}, err
		},
	}

	walker.Walk(ctx, func(commits []githubCommit) bool {
		for _, c := range commits {
			commit := g.toCommit(c)
			if set.Has(commit.SHA) || commit.IsMerge() || !inWindow(g.cfg.Window, commit.CommittedAt) {
				continue
			}
			if g.isCommitter(c) {
				set.Add(commit)
			}
		}
		return false
	})
	return !failed
}

func (g *githubAdapter) isCommitter(c githubCommit) bool {
	if c.Author != nil && g.cfg.Username != "" && c.Author.Login == g.cfg.Username {
		return true
	}
	return g.cfg.HasEmail(c.Commit.Author.Email) || g.cfg.HasName(c.Commit.Author.Name)
}

func (g *githubAdapter) toCommit(c githubCommit) model.Commit {
	commit := model.Commit{
		SHA:            c.SHA,
		ShortSHA:       shortSHA(c.SHA),
		Title:          firstLine(c.Commit.Message),
		Message:        c.Commit.Message,
		AuthorName:     c.Commit.Author.Name,
		AuthorEmail:    c.Commit.Author.Email,
		CommitterName:  c.Commit.Committer.Name,
		CommitterEmail: c.Commit.Committer.Email,
		AuthoredAt:     parseTime(c.Commit.Author.Date),
		CommittedAt:    parseTime(c.Commit.Committer.Date),
		URL:            c.HTMLURL,
	}
	if c.Author != nil {
		commit.AuthorLogin = c.Author.Login
	}
	for _, p := range c.Parents {
		commit.ParentIDs = append(commit.ParentIDs, p.SHA)
	}
	return commit
}

// CountUserPullRequests counts pull requests opened by the username in
// the window. The listing is newest first, so it stops once a page ends
// before the from date.
func (g *githubAdapter) CountUserPullRequests(ctx context.Context, repo model.Repo) int {
	if g.cfg.Username == "" {
		return 0
	}

	count := 0
	walker := paging.Walker[githubPullRequest]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[githubPullRequest], error) {
			params := g.pageParams(cur.Page)
			params.Set("state", "all")
			params.Set("sort", "created")
			params.Set("direction", "desc")

			var resp []githubPullRequest
			err := g.get.Get(ctx, repo.PullRequestsURL, params, &resp)
			return paging.Page[githubPullRequest]{Items: resp}, err
		},
	}

	walker.Walk(ctx, func(prs []githubPullRequest) bool {
		var last model.PullRequest
		for _, raw := range prs {
			last = raw.normalize()
			if last.AuthorLogin == g.cfg.Username && g.cfg.Window.Contains(last.CreatedAt) {
				count++
			}
		}
		return !last.CreatedAt.IsZero() && g.cfg.Window.BeforeFrom(last.CreatedAt)
	})
	return count
}

func (pr githubPullRequest) normalize() model.PullRequest {
	return model.PullRequest{
		ID:          strconv.FormatInt(pr.ID, 10),
		AuthorLogin: pr.User.Login,
		AuthorID:    strconv.FormatInt(pr.User.ID, 10),
		CreatedAt:   parseTime(pr.CreatedAt),
	}
}
