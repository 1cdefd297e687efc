package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsablic/contribcount/internal/auth"
	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/counter"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/output"
	"github.com/dsablic/contribcount/internal/provider"
	"github.com/dsablic/contribcount/internal/runner"
	"github.com/dsablic/contribcount/internal/ui"
)

// countFlags are the options of the count command. Only flags the user
// set override the config file.
type countFlags struct {
	providers          []string
	username           string
	emails             []string
	names              []string
	from               string
	until              string
	minCommits         int
	format             string
	gitlabURL          string
	minRepoRole        string
	minRepoAccessLevel int
	noPullRequests     bool
	configPath         string
	output             string
	rate               float64
	verbose            bool

	changed func(name string) bool
}

// credentialSource resolves stored or environment credentials.
type credentialSource interface {
	LoadWithEnv(provider, gitlabHost string) (auth.Credentials, error)
}

func newCountCmd() *cobra.Command {
	var f countFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count a user's projects, commits and pull requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.changed = cmd.Flags().Changed
			return runCount(cmd, f)
		},
	}

	cmd.Flags().StringSliceVar(&f.providers, "provider", nil, "Providers to count (bitbucket, github, gitlab); default all")
	cmd.Flags().StringVar(&f.username, "username", "", "Provider username of the user")
	cmd.Flags().StringSliceVar(&f.emails, "email", nil, "Commit email addresses of the user")
	cmd.Flags().StringSliceVar(&f.names, "name", nil, "Commit author names of the user")
	cmd.Flags().StringVar(&f.from, "from", "", "Earliest date to count (inclusive, e.g. 2024-01-01)")
	cmd.Flags().StringVar(&f.until, "until", "", "Latest date to count (inclusive)")
	cmd.Flags().IntVar(&f.minCommits, "min-commits", 1, "Minimum commits for a repository to count as a project")
	cmd.Flags().StringVar(&f.format, "format", "", "Result shapes, comma separated (projects, commits, count_per_project, total_counts, projects_with_commits, all)")
	cmd.Flags().StringVar(&f.gitlabURL, "gitlab-url", "", "Self-hosted GitLab URL")
	cmd.Flags().StringVar(&f.minRepoRole, "min-repo-role", "", "Bitbucket role or GitHub affiliation used to list repositories")
	cmd.Flags().IntVar(&f.minRepoAccessLevel, "min-repo-access-level", config.DefaultMinRepoAccessLevel, "GitLab minimum access level used to list projects")
	cmd.Flags().BoolVar(&f.noPullRequests, "no-pull-requests", false, "Do not count pull and merge requests")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file (environment is always read)")
	cmd.Flags().StringVar(&f.output, "output", "json", "Output format (json, markdown)")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "Maximum requests per second per provider (0 = unlimited)")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Log every request")

	return cmd
}

func runCount(cmd *cobra.Command, f countFlags) error {
	if f.output != "json" && f.output != "markdown" {
		return fmt.Errorf("unsupported output %q (use json or markdown)", f.output)
	}

	log := newLogger(f.verbose)
	tui := ui.IsTTY()
	if tui && !f.verbose {
		log.SetLevel(logrus.WarnLevel)
	}

	file, err := config.LoadFile(f.configPath)
	if err != nil {
		return err
	}

	store := auth.NewFileStore(auth.DefaultStorePath())
	specs, err := buildSpecs(file, f, store, log)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return errors.New("no provider to count: log in with `contribcount auth login` or set CONTRIBCOUNT_<PROVIDER>_TOKEN")
	}

	rate := file.RequestsPerSecond
	if f.changed("rate") {
		rate = f.rate
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	getters := func(kind provider.Kind, cfg config.Config) fetch.Getter {
		return provider.NewGetter(kind, cfg, rate, log)
	}
	progress := func(kind provider.Kind) counter.Progress {
		if tui {
			return ui.RunTUI(string(kind), cancel)
		}
		return ui.NewPlainProgress(string(kind), func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		})
	}

	summary := runner.Run(ctx, specs, getters, log, progress)

	first := config.New(specs[0].Options, log)
	report := output.Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Username:    first.Username,
		FromDate:    first.FromDate,
		UntilDate:   first.UntilDate,
		Summary:     summary,
	}

	if f.output == "markdown" {
		return output.WriteMarkdown(os.Stdout, report)
	}
	return output.WriteJSON(os.Stdout, report)
}

// buildSpecs turns the config file, flags and credentials into one runner
// spec per provider. Explicitly requested providers without credentials
// are an error; the others are skipped with a warning.
func buildSpecs(file config.File, f countFlags, creds credentialSource, log logrus.FieldLogger) ([]runner.Spec, error) {
	changed := f.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	explicit := len(f.providers) > 0
	kinds := provider.Kinds
	if explicit {
		kinds = nil
		for _, name := range f.providers {
			kind, err := provider.ParseKind(name)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, kind)
		}
	}

	var specs []runner.Spec
	for _, kind := range kinds {
		name := string(kind)
		section, _ := file.Section(name)
		if section.Disabled && !explicit {
			log.WithField("provider", name).Debug("Provider disabled in config")
			continue
		}

		opts := file.Options(name)
		applyFlags(opts, kind, f, changed)

		if token, _ := opts["accessToken"].(string); token == "" {
			url, _ := opts["url"].(string)
			cred, err := creds.LoadWithEnv(name, url)
			if err != nil {
				if explicit {
					return nil, fmt.Errorf("%s: %w (run `contribcount auth login --provider %s`)", name, err, name)
				}
				log.WithField("provider", name).Warn("No credentials, skipping provider")
				continue
			}
			opts["accessToken"] = cred.AccessToken
			if username, _ := opts["username"].(string); username == "" && cred.Username != "" {
				opts["username"] = cred.Username
			}
		}

		specs = append(specs, runner.Spec{Kind: kind, Options: opts})
	}
	return specs, nil
}

func applyFlags(opts config.Options, kind provider.Kind, f countFlags, changed func(string) bool) {
	if changed("username") {
		opts["username"] = f.username
	}
	if changed("email") {
		opts["userEmailAddresses"] = f.emails
	}
	if changed("name") {
		opts["userNames"] = f.names
	}
	if changed("from") {
		opts["fromDate"] = f.from
	}
	if changed("until") {
		opts["untilDate"] = f.until
	}
	if changed("min-commits") {
		opts["minCommits"] = f.minCommits
	}
	if changed("format") {
		opts["format"] = f.format
	}
	if changed("no-pull-requests") {
		opts["pullRequests"] = !f.noPullRequests
	}
	if changed("min-repo-role") && kind != provider.GitLab {
		opts["minRepoRole"] = f.minRepoRole
	}
	if changed("min-repo-access-level") && kind == provider.GitLab {
		opts["minRepoAccessLevel"] = f.minRepoAccessLevel
	}
	if changed("gitlab-url") && kind == provider.GitLab {
		opts["url"] = f.gitlabURL
	}
}
