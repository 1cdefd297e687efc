// Package config builds the immutable configuration a provider counter
// runs with.
package config

import (
	"math"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/model"
)

// ItemsPerPage is the page size requested from every listing endpoint.
const ItemsPerPage = 100

// DefaultMinRepoAccessLevel is GitLab's developer access level.
const DefaultMinRepoAccessLevel = 30

// Options is the loosely typed option set accepted by New, keyed by the
// option names used in configuration files and the library API
// (username, accessToken, userEmailAddresses, ...).
type Options map[string]any

// Identity describes who the counted user is on each provider.
type Identity struct {
	Username           string
	UserEmailAddresses []string
	UserNames          []string
}

// HasEmail reports whether email is one of the configured addresses.
func (id Identity) HasEmail(email string) bool {
	return email != "" && contains(id.UserEmailAddresses, email)
}

// HasName reports whether name is one of the configured display names.
func (id Identity) HasName(name string) bool {
	return name != "" && contains(id.UserNames, name)
}

// Config is the validated configuration of a single provider counter.
// It is never mutated after New returns.
type Config struct {
	Identity

	AccessToken string
	FromDate    string
	UntilDate   string
	Window      DateWindow

	MinCommits   int
	Formats      model.Formats
	PullRequests bool

	MinRepoRole        string
	MinRepoAccessLevel int
	URL                string

	ItemsPerPage int
}

var defaults = map[string]any{
	"username":           "",
	"accessToken":        "",
	"userEmailAddresses": []string{},
	"userNames":          []string{},
	"fromDate":           "",
	"untilDate":          "",
	"minCommits":         1,
	"format":             string(model.FormatTotalCounts),
	"pullRequests":       true,
	"minRepoRole":        "",
	"repoRole":           "",
	"minRepoAccessLevel": DefaultMinRepoAccessLevel,
	"url":                "",
}

// New validates opts and returns the resulting Config. A value is taken
// from opts only when present and of the same primitive shape as its
// default; anything else silently falls back to the default. Dates that
// cannot be parsed leave their side of the window unbounded.
func New(opts Options, log logrus.FieldLogger) Config {
	if log == nil {
		log = logrus.StandardLogger()
	}

	cfg := Config{
		Identity: Identity{
			Username:           stringOption(opts, "username"),
			UserEmailAddresses: stringsOption(opts, "userEmailAddresses"),
			UserNames:          stringsOption(opts, "userNames"),
		},
		AccessToken:        stringOption(opts, "accessToken"),
		FromDate:           strings.TrimSpace(stringOption(opts, "fromDate")),
		UntilDate:          strings.TrimSpace(stringOption(opts, "untilDate")),
		MinCommits:         intOption(opts, "minCommits"),
		Formats:            model.ParseFormats(stringOption(opts, "format")),
		PullRequests:       boolOption(opts, "pullRequests"),
		MinRepoRole:        stringOption(opts, "minRepoRole"),
		MinRepoAccessLevel: intOption(opts, "minRepoAccessLevel"),
		URL:                stringOption(opts, "url"),
		ItemsPerPage:       ItemsPerPage,
	}

	if cfg.MinCommits < 0 {
		cfg.MinCommits = defaults["minCommits"].(int)
	}

	if cfg.MinRepoRole == "" {
		if legacy := stringOption(opts, "repoRole"); legacy != "" {
			log.Warn("`repoRole` is deprecated, use `minRepoRole`")
			cfg.MinRepoRole = legacy
		}
	}

	if cfg.FromDate != "" {
		if t, ok := ParseDate(cfg.FromDate); ok {
			cfg.Window.From = &t
		} else {
			log.WithField("fromDate", cfg.FromDate).Warn("Ignoring unparseable date, lower bound is open")
		}
	}
	if cfg.UntilDate != "" {
		if t, ok := ParseDate(cfg.UntilDate); ok {
			cfg.Window.Until = &t
		} else {
			log.WithField("untilDate", cfg.UntilDate).Warn("Ignoring unparseable date, upper bound is open")
		}
	}

	return cfg
}

func stringOption(opts Options, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return defaults[key].(string)
}

func boolOption(opts Options, key string) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return defaults[key].(bool)
}

// intOption accepts any integral number, since options decoded from JSON
// or YAML may arrive as float64 or int64.
func intOption(opts Options, key string) int {
	def := defaults[key].(int)
	v, ok := opts[key]
	if !ok || v == nil {
		return def
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	}
	return def
}

func stringsOption(opts Options, key string) []string {
	switch v := opts[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return []string{}
			}
			out = append(out, s)
		}
		return out
	}
	return []string{}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
