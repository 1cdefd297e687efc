package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/model"
)

func TestNewDefaults(t *testing.T) {
	cfg := config.New(nil, nil)

	assert.Equal(t, "", cfg.Username)
	assert.Empty(t, cfg.UserEmailAddresses)
	assert.Empty(t, cfg.UserNames)
	assert.Equal(t, 1, cfg.MinCommits)
	assert.Equal(t, model.DefaultFormats, cfg.Formats)
	assert.True(t, cfg.PullRequests)
	assert.Equal(t, config.DefaultMinRepoAccessLevel, cfg.MinRepoAccessLevel)
	assert.Equal(t, config.ItemsPerPage, cfg.ItemsPerPage)
	assert.True(t, cfg.Window.IsZero())
}

func TestNewIgnoresWrongShapes(t *testing.T) {
	cfg := config.New(config.Options{
		"username":           42,
		"minCommits":         "5",
		"pullRequests":       "no",
		"userEmailAddresses": "me@example.com",
		"userNames":          []any{"Me", 3},
		"minRepoAccessLevel": 2.5,
		"unknown":            true,
	}, nil)

	assert.Equal(t, "", cfg.Username)
	assert.Equal(t, 1, cfg.MinCommits)
	assert.True(t, cfg.PullRequests)
	assert.Empty(t, cfg.UserEmailAddresses)
	assert.Empty(t, cfg.UserNames)
	assert.Equal(t, 30, cfg.MinRepoAccessLevel)
}

func TestNewAcceptsValues(t *testing.T) {
	cfg := config.New(config.Options{
		"username":           "me",
		"accessToken":        "tok",
		"userEmailAddresses": []string{"me@example.com"},
		"userNames":          []any{"Me", "Myself"},
		"minCommits":         float64(3),
		"format":             "commits,projects",
		"pullRequests":       false,
		"minRepoRole":        "admin",
		"minRepoAccessLevel": int64(40),
		"url":                "gitlab.example.com",
	}, nil)

	assert.Equal(t, "me", cfg.Username)
	assert.Equal(t, "tok", cfg.AccessToken)
	assert.Equal(t, []string{"me@example.com"}, cfg.UserEmailAddresses)
	assert.Equal(t, []string{"Me", "Myself"}, cfg.UserNames)
	assert.Equal(t, 3, cfg.MinCommits)
	assert.Equal(t, model.Formats{model.FormatCommits, model.FormatProjects}, cfg.Formats)
	assert.False(t, cfg.PullRequests)
	assert.Equal(t, "admin", cfg.MinRepoRole)
	assert.Equal(t, 40, cfg.MinRepoAccessLevel)
	assert.Equal(t, "gitlab.example.com", cfg.URL)
}

func TestNewMinCommitsZeroAndNegative(t *testing.T) {
	assert.Equal(t, 0, config.New(config.Options{"minCommits": 0}, nil).MinCommits)
	assert.Equal(t, 1, config.New(config.Options{"minCommits": -2}, nil).MinCommits)
}

func TestNewLegacyRepoRole(t *testing.T) {
	log, hook := test.NewNullLogger()

	cfg := config.New(config.Options{"repoRole": "member"}, log)
	assert.Equal(t, "member", cfg.MinRepoRole)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	cfg = config.New(config.Options{"repoRole": "member", "minRepoRole": "admin"}, log)
	assert.Equal(t, "admin", cfg.MinRepoRole)
	assert.Empty(t, hook.Entries)
}

func TestNewDates(t *testing.T) {
	log, hook := test.NewNullLogger()

	cfg := config.New(config.Options{
		"fromDate":  "2019-06-02",
		"untilDate": "not a date",
	}, log)

	require.NotNil(t, cfg.Window.From)
	assert.Equal(t, time.Date(2019, 6, 2, 0, 0, 0, 0, time.UTC), *cfg.Window.From)
	assert.Nil(t, cfg.Window.Until)
	assert.Equal(t, "not a date", cfg.UntilDate)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "not a date", hook.LastEntry().Data["untilDate"])
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020-01-01T10:00:00", time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2020-01-01T10:00:00Z", time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2020-01-01T10:00:00.000001+00:00", time.Date(2020, 1, 1, 10, 0, 0, 1000, time.UTC), true},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := config.ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDateWindowBoundsInclusive(t *testing.T) {
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	w := config.DateWindow{From: &from, Until: &until}

	assert.True(t, w.Contains(from))
	assert.True(t, w.Contains(until))
	assert.False(t, w.Contains(from.Add(-time.Microsecond)))
	assert.False(t, w.Contains(until.Add(time.Microsecond)))
	assert.True(t, w.BeforeFrom(from.Add(-time.Microsecond)))
	assert.True(t, w.AfterUntil(until.Add(time.Microsecond)))

	open := config.DateWindow{}
	assert.True(t, open.Contains(time.Time{}))
	assert.Equal(t, "", open.FromParam())
	assert.Equal(t, "", open.UntilParam())
}

func TestDateWindowParams(t *testing.T) {
	from := time.Date(2020, 1, 1, 10, 0, 0, 500, time.UTC)
	until := time.Date(2020, 1, 2, 10, 0, 0, 500, time.UTC)
	w := config.DateWindow{From: &from, Until: &until}

	assert.Equal(t, "2020-01-01T10:00:00Z", w.FromParam())
	assert.Equal(t, "2020-01-02T10:00:01Z", w.UntilParam())
}

func TestIdentityMatching(t *testing.T) {
	id := config.Identity{
		UserEmailAddresses: []string{"me@example.com"},
		UserNames:          []string{"Me"},
	}
	assert.True(t, id.HasEmail("me@example.com"))
	assert.False(t, id.HasEmail(""))
	assert.True(t, id.HasName("Me"))
	assert.False(t, id.HasName("me"))
}

func TestLoadFileOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contribcount.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
username: shared
user_email_addresses: [me@example.com]
from_date: "2020-01-01"
format: commits
no_pull_requests: true
min_commits: 2
gitlab:
  username: gl-me
  token: gl-token
  url: gitlab.example.com
  min_repo_access_level: 40
github:
  disabled: true
`), 0o600))

	f, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, f.GitHub.Disabled)

	opts := f.Options("gitlab")
	assert.Equal(t, "gl-me", opts["username"])
	assert.Equal(t, "gl-token", opts["accessToken"])
	assert.Equal(t, "gitlab.example.com", opts["url"])

	cfg := config.New(opts, nil)
	assert.Equal(t, "gl-me", cfg.Username)
	assert.Equal(t, []string{"me@example.com"}, cfg.UserEmailAddresses)
	assert.Equal(t, 40, cfg.MinRepoAccessLevel)
	assert.Equal(t, 2, cfg.MinCommits)
	assert.False(t, cfg.PullRequests)
	assert.Equal(t, model.Formats{model.FormatCommits}, cfg.Formats)
	require.NotNil(t, cfg.Window.From)

	bb := config.New(f.Options("bitbucket"), nil)
	assert.Equal(t, "shared", bb.Username)
	assert.Equal(t, "", bb.AccessToken)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
