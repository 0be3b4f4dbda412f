// Package plugin provides an extensible plugin system for the lettrage engine.
// Plugins hook into matching runs and review decisions, or contribute
// alternative matching strategies.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/matching"
	"github.com/xraph/lettrage/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Matching hooks
// ──────────────────────────────────────────────────

// RunSummary describes one completed matching run.
type RunSummary struct {
	RunID     id.RunID
	Strategy  string
	Range     types.DateRange
	Unmatched int
	Exact     int
	Partial   int
	Elapsed   time.Duration
}

// OnSuggestionsGenerated is called after a matching run produced its suggestions.
type OnSuggestionsGenerated interface {
	Plugin
	OnSuggestionsGenerated(ctx context.Context, run RunSummary, matches []*match.Match) error
}

// ──────────────────────────────────────────────────
// Review hooks
// ──────────────────────────────────────────────────

// OnMatchApproved is called after a suggestion was approved and its lines lettered.
type OnMatchApproved interface {
	Plugin
	OnMatchApproved(ctx context.Context, m *match.Match) error
}

// OnMatchRejected is called after a suggestion was rejected.
type OnMatchRejected interface {
	Plugin
	OnMatchRejected(ctx context.Context, m *match.Match) error
}

// OnMatchStale is called when an approval failed because a member line had
// been lettered in the meantime.
type OnMatchStale interface {
	Plugin
	OnMatchStale(ctx context.Context, m *match.Match, cause error) error
}

// ──────────────────────────────────────────────────
// Matching strategies
// ──────────────────────────────────────────────────

// MatchingStrategy contributes a strategy selectable by its StrategyName.
type MatchingStrategy interface {
	Plugin
	StrategyName() string
	Strategy() matching.Strategy
}
