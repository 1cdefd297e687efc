// Package runner builds one counter per requested provider from a shared
// identity and runs them one after another.
package runner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dsablic/contribcount/internal/config"
	"github.com/dsablic/contribcount/internal/counter"
	"github.com/dsablic/contribcount/internal/fetch"
	"github.com/dsablic/contribcount/internal/model"
	"github.com/dsablic/contribcount/internal/provider"
)

// Spec names a provider and the options its counter is built from.
type Spec struct {
	Kind    provider.Kind
	Options config.Options
}

// GetterFactory returns the HTTP getter a provider's adapter talks through.
// Run falls back to provider.NewGetter without rate limiting when nil.
type GetterFactory func(kind provider.Kind, cfg config.Config) fetch.Getter

// ProgressFactory returns the progress observer for one provider run.
// It may return nil.
type ProgressFactory func(kind provider.Kind) counter.Progress

// ProviderResult is the outcome of a single provider run.
type ProviderResult struct {
	Provider string       `json:"provider"`
	Result   model.Result `json:"result"`
	Error    string       `json:"error,omitempty"`
}

// Summary is the combined outcome of every provider run.
type Summary struct {
	Providers         []ProviderResult `json:"providers"`
	TotalProjects     int              `json:"total_projects"`
	TotalCommits      int              `json:"total_commits"`
	TotalPullRequests int              `json:"total_pull_requests"`
}

// Run counts contributions on every spec in order. A spec whose adapter
// cannot be built is recorded with its error and skipped.
func Run(ctx context.Context, specs []Spec, getters GetterFactory, log logrus.FieldLogger, progress ProgressFactory) Summary {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var summary Summary
	for _, spec := range specs {
		if ctx.Err() != nil {
			break
		}

		plog := log.WithField("provider", string(spec.Kind))
		cfg := config.New(spec.Options, plog)

		var getter fetch.Getter
		if getters != nil {
			getter = getters(spec.Kind, cfg)
		} else {
			getter = provider.NewGetter(spec.Kind, cfg, 0, log)
		}
		adapter, err := provider.New(spec.Kind, cfg, getter, log)
		if err != nil {
			plog.WithError(err).Error("Skipping provider")
			summary.Providers = append(summary.Providers, ProviderResult{
				Provider: string(spec.Kind),
				Error:    fmt.Sprintf("building %s adapter: %v", spec.Kind, err),
			})
			continue
		}

		opts := []counter.Option{counter.WithLogger(log)}
		if progress != nil {
			if p := progress(spec.Kind); p != nil {
				opts = append(opts, counter.WithProgress(p))
			}
		}

		plog.Info("Counting contributions")
		result := counter.New(adapter, cfg, opts...).Get(ctx)

		summary.Providers = append(summary.Providers, ProviderResult{
			Provider: adapter.Name(),
			Result:   result,
		})
		summary.TotalProjects += result.TotalProjects
		summary.TotalCommits += result.TotalCommits
		summary.TotalPullRequests += result.TotalPullRequests
	}
	return summary
}
