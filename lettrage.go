package lettrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/journal"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/matching"
	"github.com/xraph/lettrage/plugin"
	"github.com/xraph/lettrage/stats"
	"github.com/xraph/lettrage/store"
	"github.com/xraph/lettrage/types"
)

// Engine is the automatic lettrage engine. It proposes debit/credit pairings
// for the reconcilable lines of a period and applies the reviewer's decisions.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	strategy     string
	persist      bool
	reconcilable journal.Reconcilable
	now          func() time.Time
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		strategy:     matching.GreedyName,
		persist:      true,
		reconcilable: journal.AccountPrefixes(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin. A plugin that fails to register, such as
// a duplicate name or strategy, is skipped with a warning.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("plugin registration failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// WithStrategy selects the matching strategy by name. Names other than
// "greedy" must be contributed by a MatchingStrategy plugin.
func WithStrategy(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.strategy = name
		}
	}
}

// WithPersistSuggestions controls whether Suggest stores its suggestions
// (default true). Without persistence, suggestions cannot be reviewed.
func WithPersistSuggestions(persist bool) Option {
	return func(e *Engine) { e.persist = persist }
}

// WithReconcilable sets the account filter applied by ImportEntries.
func WithReconcilable(fn journal.Reconcilable) Option {
	return func(e *Engine) {
		if fn != nil {
			e.reconcilable = fn
		}
	}
}

// WithClock overrides the time source used for review timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Store returns the backing store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("lettrage started",
		"strategy", e.strategy,
		"persist_suggestions", e.persist,
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Line import
// ──────────────────────────────────────────────────

// ImportLines stores ledger lines. Dates are truncated to the calendar day.
// Malformed lines reject the whole batch with a MultiError of
// ValidationErrors. Existing lettrage codes are never overwritten.
func (e *Engine) ImportLines(ctx context.Context, lines []*line.Line) error {
	var errs MultiError
	for i, l := range lines {
		for _, v := range checkLine(l) {
			v.Field = fmt.Sprintf("lines[%d].%s", i, v.Field)
			errs.Add(v)
		}
	}
	if errs.HasErrors() {
		return errs
	}

	now := e.now()
	for _, l := range lines {
		l.Date = types.Date(l.Date)
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.UpdatedAt = now
	}

	return e.store.UpsertLines(ctx, lines)
}

func checkLine(l *line.Line) []ValidationError {
	if l == nil {
		return []ValidationError{{Field: "line", Message: "must not be nil"}}
	}

	var out []ValidationError
	if l.ID == "" {
		out = append(out, ValidationError{Field: "id", Message: "is required"})
	}
	if l.AccountCode == "" {
		out = append(out, ValidationError{Field: "account_code", Message: "is required"})
	}
	if l.Date.IsZero() {
		out = append(out, ValidationError{Field: "date", Message: "is required"})
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		out = append(out, ValidationError{Field: "amount", Message: "must not be negative"})
	}
	if l.Debit.IsPositive() && l.Credit.IsPositive() {
		out = append(out, ValidationError{Field: "amount", Message: "line cannot carry both a debit and a credit"})
	}
	return out
}

// ImportEntries validates journal entries, extracts the reconcilable
// postings dated inside r and stores them. It returns the number of lines
// stored.
func (e *Engine) ImportEntries(ctx context.Context, entries []journal.Entry, r types.DateRange) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	if issues := journal.Validate(entries); len(issues) > 0 {
		var errs MultiError
		for _, is := range issues {
			errs.Add(ValidationError{Field: issueField(is), Message: is.Message})
		}
		return 0, errs
	}

	lines := journal.Extract(entries, r, e.reconcilable)
	if len(lines) == 0 {
		return 0, nil
	}

	if err := e.ImportLines(ctx, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

func issueField(is journal.Issue) string {
	if is.Line < 0 {
		return fmt.Sprintf("entry %s: %s", is.EntryID, is.Field)
	}
	return fmt.Sprintf("entry %s line %d: %s", is.EntryID, is.Line+1, is.Field)
}

// ──────────────────────────────────────────────────
// Matching
// ──────────────────────────────────────────────────

// Suggest runs the configured strategy over the unlettered lines dated
// inside r and returns its suggestions in strategy order. Lines reach the
// strategy in ledger order: date ascending, then import order. With the
// greedy strategy a debit therefore pairs with the earliest-dated eligible
// credit, not the first one imported. When persistence is enabled the
// suggestions are upserted, so re-running on unchanged data
// never duplicates them. Suggest never modifies a line.
func (e *Engine) Suggest(ctx context.Context, r types.DateRange) ([]*match.Match, error) {
	start := time.Now()

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	r = types.NewDateRange(r.Start, r.End)

	strategy, err := e.resolveStrategy()
	if err != nil {
		return nil, err
	}

	lines, err := e.store.ListLines(ctx, line.ListOpts{Start: r.Start, End: r.End})
	if err != nil {
		return nil, fmt.Errorf("lettrage: load lines: %w", err)
	}

	set := matching.BuildSet(lines, r)
	matches := strategy.Match(set)

	runID := id.NewRunID()
	summary := plugin.RunSummary{
		RunID:     runID,
		Strategy:  strategy.Name(),
		Range:     r,
		Unmatched: set.Unmatched(),
	}
	for _, m := range matches {
		m.RunID = runID
		if m.Strategy == "" {
			m.Strategy = strategy.Name()
		}
		switch m.Type {
		case match.TypeExact:
			summary.Exact++
		case match.TypePartial:
			summary.Partial++
		}
	}

	if e.persist {
		e.discardLettered(ctx, r, set.Lettered)

		if len(matches) > 0 {
			if err := e.store.UpsertMatches(ctx, matches); err != nil {
				return nil, fmt.Errorf("lettrage: store suggestions: %w", err)
			}
		}
	}

	summary.Elapsed = time.Since(start)
	e.plugins.EmitSuggestionsGenerated(ctx, summary, matches)

	e.logger.Info("matching run completed",
		"run_id", runID.String(),
		"strategy", strategy.Name(),
		"range", r.String(),
		"unmatched", summary.Unmatched,
		"dropped", set.Dropped,
		"suggestions", len(matches),
		"exact", summary.Exact,
		"partial", summary.Partial,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)

	return matches, nil
}

func (e *Engine) resolveStrategy() (matching.Strategy, error) {
	if s, ok := e.plugins.Strategy(e.strategy); ok {
		return s, nil
	}
	if e.strategy == matching.GreedyName {
		return matching.NewGreedy(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, e.strategy)
}

// discardLettered removes pending suggestions dated inside r that reference
// a line lettered since they were proposed.
func (e *Engine) discardLettered(ctx context.Context, r types.DateRange, lettered []*line.Line) {
	if len(lettered) == 0 {
		return
	}

	done := make(map[string]bool, len(lettered))
	for _, l := range lettered {
		done[l.ID] = true
	}

	pending, err := e.store.ListMatches(ctx, match.ListOpts{
		Status: match.StatusPending,
		Start:  r.Start,
		End:    r.End,
	})
	if err != nil {
		e.logger.Warn("failed to list pending suggestions", "error", err)
		return
	}

	for _, m := range pending {
		for _, lid := range m.LineIDs {
			if done[lid] {
				e.discard(ctx, m)
				break
			}
		}
	}
}

func (e *Engine) discard(ctx context.Context, m *match.Match) {
	if err := e.store.DeleteMatch(ctx, m.ID); err != nil && !IsNotFound(err) {
		e.logger.Warn("failed to discard stale suggestion",
			"match_id", m.ID.String(),
			"error", err,
		)
		return
	}
	e.logger.Debug("discarded stale suggestion", "match_id", m.ID.String())
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetMatch retrieves a suggestion by ID.
func (e *Engine) GetMatch(ctx context.Context, matchID id.MatchID) (*match.Match, error) {
	return e.store.GetMatch(ctx, matchID)
}

// ListSuggestions lists stored suggestions.
func (e *Engine) ListSuggestions(ctx context.Context, opts match.ListOpts) ([]*match.Match, error) {
	return e.store.ListMatches(ctx, opts)
}

// ListLines lists stored ledger lines.
func (e *Engine) ListLines(ctx context.Context, opts line.ListOpts) ([]*line.Line, error) {
	return e.store.ListLines(ctx, opts)
}

// Statistics reports the lettering state of the lines dated inside r.
// PendingReview counts the stored pending suggestions dated inside r.
func (e *Engine) Statistics(ctx context.Context, r types.DateRange) (stats.Stats, error) {
	if err := r.Validate(); err != nil {
		return stats.Stats{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	r = types.NewDateRange(r.Start, r.End)

	lines, err := e.store.ListLines(ctx, line.ListOpts{Start: r.Start, End: r.End})
	if err != nil {
		return stats.Stats{}, fmt.Errorf("lettrage: load lines: %w", err)
	}

	pending, err := e.store.CountMatches(ctx, match.ListOpts{
		Status: match.StatusPending,
		Start:  r.Start,
		End:    r.End,
	})
	if err != nil {
		return stats.Stats{}, fmt.Errorf("lettrage: count pending suggestions: %w", err)
	}

	return stats.Compute(lines, pending), nil
}

func asStale(err error) (*StaleMatchError, bool) {
	var stale *StaleMatchError
	if errors.As(err, &stale) {
		return stale, true
	}
	return nil, false
}
