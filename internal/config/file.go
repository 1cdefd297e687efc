package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// File is the on-disk (YAML) configuration of the contribcount CLI.
// Every field may also be set from the environment.
type File struct {
	Username           string   `yaml:"username" env:"CONTRIBCOUNT_USERNAME"`
	UserEmailAddresses []string `yaml:"user_email_addresses" env:"CONTRIBCOUNT_USER_EMAILS" env-separator:","`
	UserNames          []string `yaml:"user_names" env:"CONTRIBCOUNT_USER_NAMES" env-separator:","`
	FromDate           string   `yaml:"from_date" env:"CONTRIBCOUNT_FROM_DATE"`
	UntilDate          string   `yaml:"until_date" env:"CONTRIBCOUNT_UNTIL_DATE"`
	MinCommits         int      `yaml:"min_commits" env:"CONTRIBCOUNT_MIN_COMMITS"`
	Format             string   `yaml:"format" env:"CONTRIBCOUNT_FORMAT"`
	NoPullRequests     bool     `yaml:"no_pull_requests" env:"CONTRIBCOUNT_NO_PULL_REQUESTS"`
	RequestsPerSecond  float64  `yaml:"requests_per_second" env:"CONTRIBCOUNT_RATE"`

	Bitbucket ProviderFile `yaml:"bitbucket" env-prefix:"CONTRIBCOUNT_BITBUCKET_"`
	GitHub    ProviderFile `yaml:"github" env-prefix:"CONTRIBCOUNT_GITHUB_"`
	GitLab    ProviderFile `yaml:"gitlab" env-prefix:"CONTRIBCOUNT_GITLAB_"`
}

// ProviderFile holds the settings of a single provider section.
type ProviderFile struct {
	Disabled           bool   `yaml:"disabled" env:"DISABLED"`
	Username           string `yaml:"username" env:"USERNAME"`
	Token              string `yaml:"token" env:"TOKEN"`
	MinRepoRole        string `yaml:"min_repo_role" env:"MIN_REPO_ROLE"`
	MinRepoAccessLevel int    `yaml:"min_repo_access_level" env:"MIN_REPO_ACCESS_LEVEL"`
	URL                string `yaml:"url" env:"URL"`
}

// LoadFile reads path (if non-empty) and then the environment into a File.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		if err := cleanenv.ReadEnv(&f); err != nil {
			return File{}, fmt.Errorf("read config from env: %w", err)
		}
		return f, nil
	}
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return f, nil
}

// Section returns the provider section for name (bitbucket, github or
// gitlab).
func (f File) Section(name string) (ProviderFile, bool) {
	switch name {
	case "bitbucket":
		return f.Bitbucket, true
	case "github":
		return f.GitHub, true
	case "gitlab":
		return f.GitLab, true
	}
	return ProviderFile{}, false
}

// Options flattens the shared settings and the named provider section into
// an Options map for New. Provider-level values win over shared ones.
// Zero values are left out so New applies its defaults; min_commits: 0
// therefore means the default of 1.
func (f File) Options(name string) Options {
	opts := Options{
		"username":           f.Username,
		"userEmailAddresses": f.UserEmailAddresses,
		"userNames":          f.UserNames,
		"fromDate":           f.FromDate,
		"untilDate":          f.UntilDate,
		"format":             f.Format,
		"pullRequests":       !f.NoPullRequests,
	}
	if f.MinCommits > 0 {
		opts["minCommits"] = f.MinCommits
	}

	section, ok := f.Section(name)
	if !ok {
		return opts
	}
	if section.Username != "" {
		opts["username"] = section.Username
	}
	if section.Token != "" {
		opts["accessToken"] = section.Token
	}
	if section.MinRepoRole != "" {
		opts["minRepoRole"] = section.MinRepoRole
	}
	if section.MinRepoAccessLevel > 0 {
		opts["minRepoAccessLevel"] = section.MinRepoAccessLevel
	}
	if section.URL != "" {
		opts["url"] = section.URL
	}
	return opts
}
