// internal/provider/gitlab.go
package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
)

const gitlabAPIPath = "api/v4"

const gitlabAPIBase = "https://gitlab.com/" + gitlabAPIPath + "/"

// GitLabAPIEndpoint turns a self-hosted GitLab URL into its API root. It
// accepts the URL with or without scheme, surrounding slashes and a
// trailing api/v4, defaulting the scheme to http://.
func GitLabAPIEndpoint(baseURL string) string {
	base := strings.Trim(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(base, gitlabAPIPath) {
		base = strings.Trim(strings.TrimSuffix(base, gitlabAPIPath), "/")
	}
	if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
		base = "http://" + base
	}
	return base + "/" + gitlabAPIPath + "/"
}

// gitlabAdapter implements Adapter for gitlab.com and self-hosted GitLab.
type gitlabAdapter struct {
	cfg  config.Config
	get  fetch.Getter
	log  logrus.FieldLogger
	memo *lru.Cache
}

func newGitLab(cfg config.Config, getter fetch.Getter, log logrus.FieldLogger) *gitlabAdapter {
	return &gitlabAdapter{
		cfg:  cfg,
		get:  getter,
		log:  log,
		memo: newMemo(),
	}
}

func (g *gitlabAdapter) Name() string { return string(GitLab) }

func (g *gitlabAdapter) RepositoryPaging() RepoPaging {
	return RepoPaging{PageSize: g.cfg.ItemsPerPage, OrderedByUpdate: true}
}

type gitlabUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type gitlabProject struct {
	ID                int64       `json:"id"`
	Path              string      `json:"path"`
	PathWithNamespace string      `json:"path_with_namespace"`
	Description       string      `json:"description"`
	WebURL            string      `json:"web_url"`
	Visibility        string      `json:"visibility"`
	DefaultBranch     string      `json:"default_branch"`
	CreatedAt         string      `json:"created_at"`
	LastActivityAt    string      `json:"last_activity_at"`
	Owner             *gitlabUser `json:"owner"`
	Namespace         struct {
		Path string `json:"path"`
	} `json:"namespace"`
}

type gitlabCommit struct {
	ID             string   `json:"id"`
	ShortID        string   `json:"short_id"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	AuthorName     string   `json:"author_name"`
	AuthorEmail    string   `json:"author_email"`
	CommitterName  string   `json:"committer_name"`
	CommitterEmail string   `json:"committer_email"`
	ParentIDs      []string `json:"parent_ids"`
	AuthoredDate   string   `json:"authored_date"`
	CommittedDate  string   `json:"committed_date"`
}

type gitlabMergeRequest struct {
	ID        int64      `json:"id"`
	IID       int64      `json:"iid"`
	Author    gitlabUser `json:"author"`
	CreatedAt string     `json:"created_at"`
}

func (g *gitlabAdapter) pageParams(page int) url.Values {
	return url.Values{
		"per_page": {strconv.Itoa(g.cfg.ItemsPerPage)},
		"page":     {strconv.Itoa(page)},
	}
}

// ListRepositoriesPage lists projects the user has at least the
// configured access level on, most recently active first.
func (g *gitlabAdapter) ListRepositoriesPage(ctx context.Context, cur paging.Cursor) (paging.Page[model.Repo], error) {
	params := g.pageParams(cur.Page)
	params.Set("min_access_level", strconv.Itoa(g.cfg.MinRepoAccessLevel))
	params.Set("simple", "false")
	params.Set("order_by", "last_activity_at")
	params.Set("sort", "desc")

	var resp []gitlabProject
	if err := g.get.Get(ctx, "projects", params, &resp); err != nil {
		return paging.Page[model.Repo]{}, err
	}

	repos := make([]model.Repo, 0, len(resp))
	for _, p := range resp {
		owner := p.Namespace.Path
		if p.Owner != nil && p.Owner.Name != "" {
			owner = p.Owner.Name
		}
		id := strconv.FormatInt(p.ID, 10)
		repos = append(repos, model.Repo{
			Key:             p.PathWithNamespace,
			ID:              id,
			Name:            p.Path,
			FullName:        p.PathWithNamespace,
			Description:     p.Description,
			Owner:           owner,
			URL:             p.WebURL,
			Provider:        string(GitLab),
			DefaultBranch:   p.DefaultBranch,
			Private:         p.Visibility == "private",
			CreatedAt:       parseTime(p.CreatedAt),
			UpdatedAt:       parseTime(p.LastActivityAt),
			CommitsURL:      "projects/" + id + "/repository/commits",
			PullRequestsURL: "projects/" + id + "/merge_requests",
		})
	}
	return paging.Page[model.Repo]{Items: repos}, nil
}

// ListUserCommits lists commits of every branch (all=true) in the window
// and keeps the non-merge ones authored under a configured email or name.
// Commit dates are checked again since the API window is widened to whole
// seconds.
func (g *gitlabAdapter) ListUserCommits(ctx context.Context, repo model.Repo) *model.CommitSet {
	set := model.NewCommitSet()

	walker := paging.Walker[gitlabCommit]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[gitlabCommit], error) {
			params := g.pageParams(cur.Page)
			params.Set("all", "true")
			if from := g.cfg.Window.FromParam(); from != "" {
				params.Set("since", from)
			}
			if until := g.cfg.Window.UntilParam(); until != "" {
				params.Set("until", until)
			}

			var resp []gitlabCommit
			err := g.get.Get(ctx, repo.CommitsURL, params, &resp)
			return paging.Page[gitlabCommit]{Items: resp}, err
		},
	}

	walker.Walk(ctx, func(commits []gitlabCommit) bool {
		for _, c := range commits {
			commit := model.Commit{
				SHA:            c.ID,
				ShortSHA:       c.ShortID,
				Title:          c.Title,
				Message:        c.Message,
				AuthorName:     c.AuthorName,
				AuthorEmail:    c.AuthorEmail,
				CommitterName:  c.CommitterName,
				CommitterEmail: c.CommitterEmail,
				ParentIDs:      c.ParentIDs,
				AuthoredAt:     parseTime(c.AuthoredDate),
				CommittedAt:    parseTime(c.CommittedDate),
				URL:            repo.URL + "/commit/" + c.ID,
			}
			if commit.IsMerge() || !inWindow(g.cfg.Window, commit.CommittedAt) {
				continue
			}
			if g.cfg.HasEmail(c.AuthorEmail) || g.cfg.HasName(c.AuthorName) {
				set.Add(commit)
			}
		}
		return false
	})

	return set
}

// currentUser returns the token owner when it is the configured user.
func (g *gitlabAdapter) currentUser(ctx context.Context) (gitlabUser, bool) {
	user, ok := cachedGet[gitlabUser](ctx, g.memo, g.get, "user")
	if !ok || user.ID == 0 {
		return gitlabUser{}, false
	}
	if g.cfg.Username != "" && user.Username != g.cfg.Username {
		return gitlabUser{}, false
	}
	return user, true
}

// CountUserPullRequests counts merge requests opened in the window. The
// author is matched by id when the token owner is the configured user,
// otherwise by username.
func (g *gitlabAdapter) CountUserPullRequests(ctx context.Context, repo model.Repo) int {
	user, byID := g.currentUser(ctx)
	if !byID && g.cfg.Username == "" {
		return 0
	}

	count := 0
	walker := paging.Walker[gitlabMergeRequest]{
		PageSize: g.cfg.ItemsPerPage,
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[gitlabMergeRequest], error) {
			params := g.pageParams(cur.Page)
			params.Set("scope", "all")
			if byID {
				params.Set("author_id", strconv.FormatInt(user.ID, 10))
			}
			if from := g.cfg.Window.FromParam(); from != "" {
				params.Set("created_after", from)
			}
			if until := g.cfg.Window.UntilParam(); until != "" {
				params.Set("created_before", until)
			}

			var resp []gitlabMergeRequest
			err := g.get.Get(ctx, repo.PullRequestsURL, params, &resp)
			return paging.Page[gitlabMergeRequest]{Items: resp}, err
		},
	}

	userID := strconv.FormatInt(user.ID, 10)
	walker.Walk(ctx, func(mrs []gitlabMergeRequest) bool {
		for _, raw := range mrs {
			mr := raw.normalize()
			if !inWindow(g.cfg.Window, mr.CreatedAt) {
				continue
			}
			if byID && mr.AuthorID == userID {
				count++
			} else if !byID && mr.AuthorLogin == g.cfg.Username {
				count++
			}
		}
		return false
	})
	return count
}

func (mr gitlabMergeRequest) normalize() model.PullRequest {
	return model.PullRequest{
		ID:          strconv.FormatInt(mr.ID, 10),
		AuthorLogin: mr.Author.Username,
		AuthorID:    strconv.FormatInt(mr.Author.ID, 10),
		CreatedAt:   parseTime(mr.CreatedAt),
	}
}
