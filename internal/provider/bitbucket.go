// internal/provider/bitbucket.go
package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/paging"
)

const bitbucketAPIBase = "https://api.bitbucket.org/2.0/"

const bitbucketPullRequestsPageLen = 50

// Bitbucket branch-close commits carry one of these message prefixes.
var bitbucketCloseBranchPrefixes = []string{"Close branch ", "Closed branch "}

var bitbucketPullRequestStates = []string{"OPEN", "MERGED", "DECLINED", "SUPERSEDED"}

// bitbucketAdapter implements Adapter for Bitbucket Cloud.
type bitbucketAdapter struct {
	cfg  config.Config
	get  fetch.Getter
	log  logrus.FieldLogger
	role string
	memo *lru.Cache
}

func newBitbucket(cfg config.Config, getter fetch.Getter, log logrus.FieldLogger) *bitbucketAdapter {
	role := cfg.MinRepoRole
	if role == "" {
		role = "contributor"
	}
	return &bitbucketAdapter{
		cfg:  cfg,
		get:  getter,
		log:  log,
		role: role,
		memo: newMemo(),
	}
}

func (b *bitbucketAdapter) Name() string { return string(Bitbucket) }

// RepositoryPaging: the listing is date-filtered server side but not
// sortable, so it is followed through next links only and reversed to
// put the newest repositories first.
func (b *bitbucketAdapter) RepositoryPaging() RepoPaging {
	return RepoPaging{Reverse: true, FilteredByDate: true}
}

type bitbucketLink struct {
	Href string `json:"href"`
}

type bitbucketUser struct {
	UUID        string `json:"uuid"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type bitbucketRepo struct {
	UUID        string        `json:"uuid"`
	Name        string        `json:"name"`
	FullName    string        `json:"full_name"`
	Description string        `json:"description"`
	IsPrivate   bool          `json:"is_private"`
	CreatedOn   string        `json:"created_on"`
	UpdatedOn   string        `json:"updated_on"`
	Owner       bitbucketUser `json:"owner"`
	MainBranch  *struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	Links struct {
		HTML         bitbucketLink `json:"html"`
		Commits      bitbucketLink `json:"commits"`
		PullRequests bitbucketLink `json:"pullrequests"`
	} `json:"links"`
}

type bitbucketCommit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Author  struct {
		Raw  string         `json:"raw"`
		User *bitbucketUser `json:"user"`
	} `json:"author"`
	Parents []struct {
		Hash string `json:"hash"`
	} `json:"parents"`
	Links struct {
		HTML bitbucketLink `json:"html"`
	} `json:"links"`
}

type bitbucketPullRequest struct {
	ID        int           `json:"id"`
	CreatedOn string        `json:"created_on"`
	Author    bitbucketUser `json:"author"`
}

type bitbucketPage[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

// windowQuery builds Bitbucket's q filter for the configured window.
func (b *bitbucketAdapter) windowQuery(fromField, untilField string) string {
	if b.cfg.Window.IsZero() {
		return ""
	}
	var parts []string
	if from := b.cfg.Window.FromParam(); from != "" {
		parts = append(parts, fromField+">="+from)
	}
	if until := b.cfg.Window.UntilParam(); until != "" {
		parts = append(parts, untilField+"<="+until)
	}
	return strings.Join(parts, " AND ")
}

// ListRepositoriesPage fetches the first page from the repositories
// endpoint and every later page from the next link it hands out.
func (b *bitbucketAdapter) ListRepositoriesPage(ctx context.Context, cur paging.Cursor) (paging.Page[model.Repo], error) {
	endpoint := cur.URL
	var params url.Values
	if endpoint == "" {
		endpoint = "repositories/"
		params = url.Values{
			"role":    {b.role},
			"pagelen": {strconv.Itoa(b.cfg.ItemsPerPage)},
			"page":    {strconv.Itoa(cur.Page)},
		}
		if q := b.windowQuery("updated_on", "created_on"); q != "" {
			params.Set("q", q)
		}
	}

	var resp bitbucketPage[bitbucketRepo]
	if err := b.get.Get(ctx, endpoint, params, &resp); err != nil {
		return paging.Page[model.Repo]{}, err
	}

	repos := make([]model.Repo, 0, len(resp.Values))
	for _, r := range resp.Values {
		repos = append(repos, b.toRepo(r))
	}
	return paging.Page[model.Repo]{Items: repos, Next: resp.Next}, nil
}

func (b *bitbucketAdapter) toRepo(r bitbucketRepo) model.Repo {
	repo := model.Repo{
		Key:             r.FullName,
		ID:              r.UUID,
		Name:            r.Name,
		FullName:        r.FullName,
		Description:     r.Description,
		Owner:           r.Owner.Username,
		URL:             r.Links.HTML.Href,
		Provider:        string(Bitbucket),
		Private:         r.IsPrivate,
		CreatedAt:       parseTime(r.CreatedOn),
		UpdatedAt:       parseTime(r.UpdatedOn),
		CommitsURL:      r.Links.Commits.Href,
		PullRequestsURL: r.Links.PullRequests.Href,
	}
	if repo.Owner == "" {
		repo.Owner = r.Owner.Nickname
	}
	if r.MainBranch != nil {
		repo.DefaultBranch = r.MainBranch.Name
	}
	if repo.CommitsURL == "" {
		repo.CommitsURL = "repositories/" + r.FullName + "/commits"
	}
	if repo.PullRequestsURL == "" {
		repo.PullRequestsURL = "repositories/" + r.FullName + "/pullrequests"
	}
	return repo
}

// ListUserCommits walks the repository's commits, newest first. Bitbucket
// cannot filter commits by date, so the walk stops at the first commit
// older than the window and skips those newer than it.
func (b *bitbucketAdapter) ListUserCommits(ctx context.Context, repo model.Repo) *model.CommitSet {
	set := model.NewCommitSet()

	// Bitbucket's own next link is unreliable here; the page number is
	// advanced on the original endpoint instead.
	walker := paging.Walker[bitbucketCommit]{
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[bitbucketCommit], error) {
			params := url.Values{
				"pagelen": {strconv.Itoa(b.cfg.ItemsPerPage)},
				"page":    {strconv.Itoa(cur.Page)},
			}
			var resp bitbucketPage[bitbucketCommit]
			if err := b.get.Get(ctx, repo.CommitsURL, params, &resp); err != nil {
				return paging.Page[bitbucketCommit]{}, err
			}
			return paging.Page[bitbucketCommit]{Items: resp.Values, Next: resp.Next}, nil
		},
	}

	walker.Walk(ctx, func(commits []bitbucketCommit) bool {
		for _, c := range commits {
			date := parseTime(c.Date)
			if !date.IsZero() && b.cfg.Window.BeforeFrom(date) {
				return true
			}
			if !date.IsZero() && b.cfg.Window.AfterUntil(date) {
				continue
			}
			if commit := b.toCommit(c, date); b.shouldAddCommit(c, commit) {
				set.Add(commit)
			}
		}
		return false
	})

	return set
}

func (b *bitbucketAdapter) shouldAddCommit(c bitbucketCommit, commit model.Commit) bool {
	for _, prefix := range bitbucketCloseBranchPrefixes {
		if strings.HasPrefix(commit.Message, prefix) {
			return false
		}
	}
	if commit.IsMerge() {
		return false
	}
	return b.isCommitter(c)
}

// isCommitter matches the linked account first, then falls back to the
// raw author string ("Name <email>").
func (b *bitbucketAdapter) isCommitter(c bitbucketCommit) bool {
	if u := c.Author.User; u != nil {
		if b.cfg.Username != "" && u.Username == b.cfg.Username {
			return true
		}
		if b.cfg.HasEmail(u.Email) {
			return true
		}
	}

	raw := c.Author.Raw
	return containsAny(raw, []string{b.cfg.Username}) ||
		containsAny(raw, b.cfg.UserEmailAddresses) ||
		containsAny(raw, b.cfg.UserNames)
}

func (b *bitbucketAdapter) toCommit(c bitbucketCommit, date time.Time) model.Commit {
	name, email := splitRawAuthor(c.Author.Raw)
	commit := model.Commit{
		SHA:         c.Hash,
		ShortSHA:    shortSHA(c.Hash),
		Title:       firstLine(c.Message),
		Message:     c.Message,
		AuthorName:  name,
		AuthorEmail: email,
		AuthoredAt:  date,
		CommittedAt: date,
		URL:         c.Links.HTML.Href,
	}
	if c.Author.User != nil {
		commit.AuthorLogin = c.Author.User.Username
	}
	for _, p := range c.Parents {
		commit.ParentIDs = append(commit.ParentIDs, p.Hash)
	}
	return commit
}

// splitRawAuthor splits "Name <email>" into its parts.
func splitRawAuthor(raw string) (name, email string) {
	open := strings.LastIndexByte(raw, '<')
	end := strings.LastIndexByte(raw, '>')
	if open < 0 || end < open {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(raw[:open]), raw[open+1 : end]
}

// CountUserPullRequests counts the pull requests in repo whose author is
// the account the token belongs to.
func (b *bitbucketAdapter) CountUserPullRequests(ctx context.Context, repo model.Repo) int {
	user, ok := cachedGet[bitbucketUser](ctx, b.memo, b.get, "user")
	if !ok || user.UUID == "" {
		b.log.WithField("repo", repo.Key).Debug("Unknown user uuid, skipping pull requests")
		return 0
	}

	params := url.Values{
		"state":   bitbucketPullRequestStates,
		"pagelen": {strconv.Itoa(bitbucketPullRequestsPageLen)},
	}
	if q := b.windowQuery("created_on", "created_on"); q != "" {
		params.Set("q", q)
	}

	count := 0
	walker := paging.Walker[bitbucketPullRequest]{
		Fetch: func(ctx context.Context, cur paging.Cursor) (paging.Page[bitbucketPullRequest], error) {
			p := url.Values{"page": {strconv.Itoa(cur.Page)}}
			for k, v := range params {
				p[k] = v
			}
			var resp bitbucketPage[bitbucketPullRequest]
			if err := b.get.Get(ctx, repo.PullRequestsURL, p, &resp); err != nil {
				return paging.Page[bitbucketPullRequest]{}, err
			}
			return paging.Page[bitbucketPullRequest]{Items: resp.Values, Next: resp.Next}, nil
		},
	}
	walker.Walk(ctx, func(prs []bitbucketPullRequest) bool {
		for _, raw := range prs {
			pr := raw.normalize()
			if pr.AuthorID == user.UUID && inWindow(b.cfg.Window, pr.CreatedAt) {
				count++
			}
		}
		return false
	})
	return count
}

func (pr bitbucketPullRequest) normalize() model.PullRequest {
	return model.PullRequest{
		ID:          strconv.Itoa(pr.ID),
		AuthorLogin: pr.Author.Username,
		AuthorID:    pr.Author.UUID,
		CreatedAt:   parseTime(pr.CreatedOn),
	}
}
