package model

import (
	"encoding/json"
	"strings"
)

// Format selects an output shape of an aggregation run.
type Format string

const (
	FormatProjects            Format = "projects"
	FormatCommits             Format = "commits"
	FormatCountPerProject     Format = "count_per_project"
	FormatTotalCounts         Format = "total_counts"
	FormatProjectsWithCommits Format = "projects_with_commits"
	FormatAll                 Format = "all"
)

var knownFormats = []Format{
	FormatProjects,
	FormatCommits,
	FormatCountPerProject,
	FormatTotalCounts,
	FormatProjectsWithCommits,
	FormatAll,
}

// Formats is the set of requested output shapes.
type Formats []Format

// DefaultFormats is used when no (valid) format is requested.
var DefaultFormats = Formats{FormatTotalCounts}

// ParseFormats parses a single format or a comma separated combination.
// Unknown entries are dropped; an empty result yields DefaultFormats.
func ParseFormats(s string) Formats {
	var out Formats
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if !isKnownFormat(f) || out.contains(f) {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return DefaultFormats
	}
	return out
}

func isKnownFormat(f Format) bool {
	for _, k := range knownFormats {
		if k == f {
			return true
		}
	}
	return false
}

func (fs Formats) contains(f Format) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Has reports whether the shape f should be produced. "all" implies every
// shape, and "projects_with_commits" implies "projects".
func (fs Formats) Has(f Format) bool {
	if fs.contains(FormatAll) || fs.contains(f) {
		return true
	}
	if f == FormatProjects {
		return fs.contains(FormatProjectsWithCommits)
	}
	return false
}

// IsDefault reports whether only total counts were requested, which is
// when the legacy projects/commits integers are emitted.
func (fs Formats) IsDefault() bool {
	return len(fs) == 1 && fs[0] == FormatTotalCounts
}

func (fs Formats) String() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// Result is the outcome of one provider aggregation run.
//
// Totals are always accumulated so runs can be summed; MarshalJSON only
// emits the shapes selected by Formats.
type Result struct {
	Formats           Formats
	TotalProjects     int
	TotalCommits      int
	TotalPullRequests int
	Projects          []Repo
	Commits           []Commit
	CountPerProject   map[string]int
}

// NewResult creates an empty Result for the given formats.
func NewResult(formats Formats) *Result {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	r := &Result{Formats: formats}
	if formats.Has(FormatCountPerProject) {
		r.CountPerProject = make(map[string]int)
	}
	return r
}

// AddProject folds a qualifying repository and its commits into every
// requested shape.
func (r *Result) AddProject(repo Repo, commits []Commit) {
	r.TotalProjects++
	r.TotalCommits += len(commits)

	if r.Formats.Has(FormatProjects) {
		if r.Formats.Has(FormatProjectsWithCommits) {
			repo.Commits = commits
		} else {
			repo.Commits = nil
		}
		r.Projects = append(r.Projects, repo)
	}
	if r.Formats.Has(FormatCommits) {
		r.Commits = append(r.Commits, commits...)
	}
	if r.Formats.Has(FormatCountPerProject) {
		r.CountPerProject[repo.Key] = len(commits)
	}
}

// AddPullRequests adds n pull or merge requests to the total.
func (r *Result) AddPullRequests(n int) {
	r.TotalPullRequests += n
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	formats := r.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	if formats.Has(FormatTotalCounts) {
		out["total_projects"] = r.TotalProjects
		out["total_commits"] = r.TotalCommits
		out["total_pull_requests"] = r.TotalPullRequests
	}
	if formats.Has(FormatProjects) {
		projects := r.Projects
		if projects == nil {
			projects = []Repo{}
		}
		out["projects"] = projects
	}
	if formats.Has(FormatCommits) {
		commits := r.Commits
		if commits == nil {
			commits = []Commit{}
		}
		out["commits"] = commits
	}
	if formats.Has(FormatCountPerProject) {
		counts := r.CountPerProject
		if counts == nil {
			counts = map[string]int{}
		}
		out["count_per_project"] = counts
	}
	if formats.IsDefault() {
		out["projects"] = r.TotalProjects
		out["commits"] = r.TotalCommits
	}

	return json.Marshal(out)
}
