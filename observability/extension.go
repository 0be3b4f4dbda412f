// Package observability provides a metrics extension for the lettrage engine
// that records matching and review counts via go-utils MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnSuggestionsGenerated = (*MetricsExtension)(nil)
	_ plugin.OnMatchApproved        = (*MetricsExtension)(nil)
	_ plugin.OnMatchRejected        = (*MetricsExtension)(nil)
	_ plugin.OnMatchStale           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records matching and review metrics.
// Register it as a lettrage plugin to track reconciliation throughput.
type MetricsExtension struct {
	factory MetricFactory

	// Matching run metrics
	Runs              Counter
	RunLatency        Histogram
	UnmatchedLines    Histogram
	SuggestionsExact  Counter
	SuggestionsPartly Counter
	Confidence        Histogram

	// Review metrics
	MatchesApproved Counter
	MatchesRejected Counter
	MatchesStale    Counter
	LinesLettered   Counter
	SettlementRace  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Runs:              factory.Counter("lettrage.runs"),
		RunLatency:        factory.Histogram("lettrage.run.latency_ms"),
		UnmatchedLines:    factory.Histogram("lettrage.run.unmatched_lines"),
		SuggestionsExact:  factory.Counter("lettrage.suggestions.exact"),
		SuggestionsPartly: factory.Counter("lettrage.suggestions.partial"),
		Confidence:        factory.Histogram("lettrage.suggestions.confidence"),

		MatchesApproved: factory.Counter("lettrage.matches.approved"),
		MatchesRejected: factory.Counter("lettrage.matches.rejected"),
		MatchesStale:    factory.Counter("lettrage.matches.stale"),
		LinesLettered:   factory.Counter("lettrage.lines.lettered"),
		SettlementRace:  factory.Counter("lettrage.matches.stale.already_approved"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnSuggestionsGenerated implements plugin.OnSuggestionsGenerated.
func (m *MetricsExtension) OnSuggestionsGenerated(_ context.Context, run plugin.RunSummary, matches []*match.Match) error {
	m.Runs.Inc()
	m.RunLatency.Observe(float64(run.Elapsed.Milliseconds()))
	m.UnmatchedLines.Observe(float64(run.Unmatched))
	m.SuggestionsExact.Add(float64(run.Exact))
	m.SuggestionsPartly.Add(float64(run.Partial))
	for _, mt := range matches {
		m.Confidence.Observe(float64(mt.Confidence))
	}
	return nil
}

// OnMatchApproved implements plugin.OnMatchApproved.
func (m *MetricsExtension) OnMatchApproved(_ context.Context, mt *match.Match) error {
	m.MatchesApproved.Inc()
	m.LinesLettered.Add(float64(len(mt.LineIDs)))
	return nil
}

// OnMatchRejected implements plugin.OnMatchRejected.
func (m *MetricsExtension) OnMatchRejected(_ context.Context, _ *match.Match) error {
	m.MatchesRejected.Inc()
	return nil
}

// OnMatchStale implements plugin.OnMatchStale.
func (m *MetricsExtension) OnMatchStale(_ context.Context, _ *match.Match, cause error) error {
	m.MatchesStale.Inc()
	var stale *lettrage.StaleMatchError
	if errors.As(cause, &stale) && stale.AlreadyApproved {
		m.SettlementRace.Inc()
	}
	return nil
}
