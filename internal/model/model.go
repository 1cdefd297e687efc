// internal/model/model.go
package model

import (
	"time"
)

// Repo represents a repository from a provider, normalized across
// Bitbucket, GitHub and GitLab.
type Repo struct {
	Key           string    `json:"key"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	Owner         string    `json:"owner,omitempty"`
	URL           string    `json:"url"`
	Provider      string    `json:"provider"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	Private       bool      `json:"private"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Commits       []Commit  `json:"commits,omitempty"`

	// Provider-native locators, not part of any output shape.
	CommitsURL      string `json:"-"`
	PullRequestsURL string `json:"-"`
}

// Commit represents a single commit attributed to the configured user.
type Commit struct {
	SHA            string    `json:"sha"`
	ShortSHA       string    `json:"short_sha,omitempty"`
	Title          string    `json:"title,omitempty"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name,omitempty"`
	AuthorEmail    string    `json:"author_email,omitempty"`
	AuthorLogin    string    `json:"author_login,omitempty"`
	CommitterName  string    `json:"committer_name,omitempty"`
	CommitterEmail string    `json:"committer_email,omitempty"`
	ParentIDs      []string  `json:"parent_ids"`
	AuthoredAt     time.Time `json:"authored_at"`
	CommittedAt    time.Time `json:"committed_at"`
	URL            string    `json:"url,omitempty"`
}

// IsMerge reports whether the commit has more than one parent.
func (c Commit) IsMerge() bool {
	return len(c.ParentIDs) > 1
}

// PullRequest represents a pull request (GitHub, Bitbucket) or merge
// request (GitLab).
type PullRequest struct {
	ID          string    `json:"id"`
	AuthorLogin string    `json:"author_login,omitempty"`
	AuthorID    string    `json:"author_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommitSet holds a repository's commits keyed by hash, preserving the
// order in which hashes were first seen.
type CommitSet struct {
	order []string
	byID  map[string]Commit
}

// NewCommitSet creates an empty CommitSet.
func NewCommitSet() *CommitSet {
	return &CommitSet{byID: make(map[string]Commit)}
}

// Add inserts c unless a commit with the same hash is already present.
// It reports whether c was added.
func (s *CommitSet) Add(c Commit) bool {
	if _, ok := s.byID[c.SHA]; ok {
		return false
	}
	s.byID[c.SHA] = c
	s.order = append(s.order, c.SHA)
	return true
}

// Has reports whether a commit with the given hash is present.
func (s *CommitSet) Has(sha string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byID[sha]
	return ok
}

// Len returns the number of distinct commits.
func (s *CommitSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// List returns the commits in first-seen order.
func (s *CommitSet) List() []Commit {
	if s == nil {
		return nil
	}
	out := make([]Commit, 0, len(s.order))
	for _, sha := range s.order {
		out = append(out, s.byID[sha])
	}
	return out
}
