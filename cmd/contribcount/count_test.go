package main

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsablic/contribcount/internal/auth"
	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/provider"
)

type fakeCreds map[string]auth.Credentials

func (f fakeCreds) LoadWithEnv(name, _ string) (auth.Credentials, error) {
	cred, ok := f[name]
	if !ok {
		return auth.Credentials{}, auth.ErrNoCredentials
	}
	return cred, nil
}

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestBuildSpecsSkipsProvidersWithoutCredentials(t *testing.T) {
	log, hook := test.NewNullLogger()
	creds := fakeCreds{"github": {AccessToken: "ghp", Username: "octo"}}

	specs, err := buildSpecs(config.File{}, countFlags{}, creds, log)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, provider.GitHub, specs[0].Kind)
	assert.Equal(t, "ghp", specs[0].Options["accessToken"])
	assert.Equal(t, "octo", specs[0].Options["username"])
	assert.Len(t, hook.AllEntries(), 2, "bitbucket and gitlab are skipped with a warning")
}

func TestBuildSpecsExplicitProviderNeedsCredentials(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := buildSpecs(config.File{}, countFlags{providers: []string{"gitlab"}}, fakeCreds{}, log)
	assert.True(t, errors.Is(err, auth.ErrNoCredentials))

	_, err = buildSpecs(config.File{}, countFlags{providers: []string{"gitea"}}, fakeCreds{}, log)
	assert.True(t, errors.Is(err, provider.ErrUnknownProvider))
}

func TestBuildSpecsFlagsOverrideFile(t *testing.T) {
	log, _ := test.NewNullLogger()
	file := config.File{
		Username:   "file-user",
		FromDate:   "2020-01-01",
		MinCommits: 3,
		GitLab:     config.ProviderFile{Token: "file-token", URL: "gitlab.example.com"},
		GitHub:     config.ProviderFile{Disabled: true},
	}
	f := countFlags{
		username:           "flag-user",
		minCommits:         5,
		gitlabURL:          "https://git.example.com",
		minRepoAccessLevel: 20,
		noPullRequests:     true,
		changed:            changedSet("username", "gitlab-url", "min-repo-access-level", "no-pull-requests"),
	}

	specs, err := buildSpecs(file, f, fakeCreds{"bitbucket": {AccessToken: "bb"}}, log)
	require.NoError(t, err)
	require.Len(t, specs, 2, "github is disabled in the file")

	bb, gl := specs[0], specs[1]
	assert.Equal(t, provider.Bitbucket, bb.Kind)
	assert.Equal(t, "flag-user", bb.Options["username"], "flag wins over stored username")
	assert.Nil(t, bb.Options["url"])
	assert.Nil(t, bb.Options["minRepoAccessLevel"])

	assert.Equal(t, provider.GitLab, gl.Kind)
	assert.Equal(t, "file-token", gl.Options["accessToken"])
	assert.Equal(t, "https://git.example.com", gl.Options["url"])
	assert.Equal(t, 20, gl.Options["minRepoAccessLevel"])
	assert.Equal(t, 3, gl.Options["minCommits"], "unchanged flag keeps the file value")
	assert.Equal(t, false, gl.Options["pullRequests"])

	cfg := config.New(gl.Options, log)
	assert.Equal(t, "flag-user", cfg.Username)
	assert.Equal(t, 3, cfg.MinCommits)
	assert.NotNil(t, cfg.Window.From)
}

func TestBuildSpecsExplicitDisabledProvider(t *testing.T) {
	log, _ := test.NewNullLogger()
	file := config.File{GitHub: config.ProviderFile{Disabled: true, Token: "t"}}

	specs, err := buildSpecs(file, countFlags{providers: []string{"github"}}, fakeCreds{}, log)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, provider.GitHub, specs[0].Kind)
}
