// internal/output/markdown.go
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dsablic/contribcount/internal/model"
)

// WriteMarkdown writes the report as GitHub-flavored markdown to w.
func WriteMarkdown(w io.Writer, report Report) error {
	fmt.Fprintf(w, "# Contribution Report\n\n")
	if report.Username != "" {
		fmt.Fprintf(w, "**User:** %s\n", report.Username)
	}
	if report.FromDate != "" || report.UntilDate != "" {
		fmt.Fprintf(w, "**Period:** %s to %s\n", orOpen(report.FromDate), orOpen(report.UntilDate))
	}
	fmt.Fprintf(w, "**Generated:** %s\n\n", report.GeneratedAt)

	// Summary totals
	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Projects | %d |\n", report.TotalProjects)
	fmt.Fprintf(w, "| Commits | %d |\n", report.TotalCommits)
	fmt.Fprintf(w, "| Pull requests | %d |\n\n", report.TotalPullRequests)

	// By provider
	fmt.Fprintf(w, "## Providers\n\n")
	fmt.Fprintf(w, "| Provider | Projects | Commits | Pull requests |\n")
	fmt.Fprintf(w, "|----------|---------:|--------:|--------------:|\n")
	for _, p := range report.Providers {
		if p.Error != "" {
			continue
		}
		fmt.Fprintf(w, "| %s | %d | %d | %d |\n",
			p.Provider, p.Result.TotalProjects, p.Result.TotalCommits, p.Result.TotalPullRequests)
	}
	fmt.Fprintln(w)

	for _, p := range report.Providers {
		if p.Error != "" {
			continue
		}
		writeProjects(w, p.Provider, p.Result)
		writeCountPerProject(w, p.Provider, p.Result)
		writeCommits(w, p.Provider, p.Result)
	}

	// Errors
	var failed bool
	for _, p := range report.Providers {
		if p.Error == "" {
			continue
		}
		if !failed {
			fmt.Fprintf(w, "## Errors\n\n")
			failed = true
		}
		fmt.Fprintf(w, "- **%s**: %s\n", p.Provider, p.Error)
	}
	if failed {
		fmt.Fprintln(w)
	}

	return nil
}

func writeProjects(w io.Writer, provider string, r model.Result) {
	if !r.Formats.Has(model.FormatProjects) || len(r.Projects) == 0 {
		return
	}
	withCommits := r.Formats.Has(model.FormatProjectsWithCommits)

	fmt.Fprintf(w, "## %s projects\n\n", provider)
	fmt.Fprintf(w, "| Repository | Private | Commits |\n")
	fmt.Fprintf(w, "|------------|---------|--------:|\n")
	for _, repo := range r.Projects {
		commits := "-"
		if withCommits {
			commits = fmt.Sprint(len(repo.Commits))
		}
		fmt.Fprintf(w, "| [%s](%s) | %t | %s |\n", repo.Key, repo.URL, repo.Private, commits)
	}
	fmt.Fprintln(w)
}

func writeCountPerProject(w io.Writer, provider string, r model.Result) {
	if len(r.CountPerProject) == 0 {
		return
	}
	keys := make([]string, 0, len(r.CountPerProject))
	for k := range r.CountPerProject {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "## %s commits per project\n\n", provider)
	fmt.Fprintf(w, "| Repository | Commits |\n")
	fmt.Fprintf(w, "|------------|--------:|\n")
	for _, k := range keys {
		fmt.Fprintf(w, "| %s | %d |\n", k, r.CountPerProject[k])
	}
	fmt.Fprintln(w)
}

func writeCommits(w io.Writer, provider string, r model.Result) {
	if !r.Formats.Has(model.FormatCommits) || len(r.Commits) == 0 {
		return
	}
	fmt.Fprintf(w, "## %s commits\n\n", provider)
	for _, c := range r.Commits {
		sha := c.ShortSHA
		if sha == "" {
			sha = c.SHA
		}
		title := c.Title
		if title == "" {
			title = strings.SplitN(c.Message, "\n", 2)[0]
		}
		if c.URL != "" {
			fmt.Fprintf(w, "- [`%s`](%s) %s\n", sha, c.URL, title)
		} else {
			fmt.Fprintf(w, "- `%s` %s\n", sha, title)
		}
	}
	fmt.Fprintln(w)
}

func orOpen(s string) string {
	if s == "" {
		return "open"
	}
	return s
}
