// Package audithook bridges lettrage matching and review events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnInit                 = (*Extension)(nil)
	_ plugin.OnShutdown             = (*Extension)(nil)
	_ plugin.OnSuggestionsGenerated = (*Extension)(nil)
	_ plugin.OnMatchApproved        = (*Extension)(nil)
	_ plugin.OnMatchRejected        = (*Extension)(nil)
	_ plugin.OnMatchStale           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter; callers inject the concrete
// *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges lettrage review events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(ctx context.Context, _ any) error {
	return e.record(ctx, ActionEngineStarted, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategorySystem, nil,
	)
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionEngineStopped, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategorySystem, nil,
	)
}

// ──────────────────────────────────────────────────
// Matching hooks
// ──────────────────────────────────────────────────

// OnSuggestionsGenerated implements plugin.OnSuggestionsGenerated.
func (e *Extension) OnSuggestionsGenerated(ctx context.Context, run plugin.RunSummary, matches []*match.Match) error {
	return e.record(ctx, ActionRunCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRun, run.RunID.String(), CategoryReconciliation, nil,
		"strategy", run.Strategy,
		"range", run.Range.String(),
		"suggestions", len(matches),
		"exact", run.Exact,
		"partial", run.Partial,
		"unmatched", run.Unmatched,
		"elapsed_ms", run.Elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Review hooks
// ──────────────────────────────────────────────────

// OnMatchApproved implements plugin.OnMatchApproved.
func (e *Extension) OnMatchApproved(ctx context.Context, m *match.Match) error {
	return e.record(ctx, ActionMatchApproved, SeverityInfo, OutcomeSuccess,
		ResourceMatch, m.ID.String(), CategoryReconciliation, nil,
		"lettrage_code", m.LettrageCode,
		"line_ids", m.LineIDs,
		"type", string(m.Type),
		"confidence", m.Confidence,
		"amount", m.Amount.String(),
	)
}

// OnMatchRejected implements plugin.OnMatchRejected.
func (e *Extension) OnMatchRejected(ctx context.Context, m *match.Match) error {
	return e.record(ctx, ActionMatchRejected, SeverityInfo, OutcomeSuccess,
		ResourceMatch, m.ID.String(), CategoryReconciliation, nil,
		"line_ids", m.LineIDs,
		"type", string(m.Type),
		"confidence", m.Confidence,
	)
}

// OnMatchStale implements plugin.OnMatchStale.
func (e *Extension) OnMatchStale(ctx context.Context, m *match.Match, cause error) error {
	kv := []any{"line_ids", m.LineIDs}
	var stale *lettrage.StaleMatchError
	if errors.As(cause, &stale) {
		kv = append(kv,
			"conflicting_codes", stale.Codes,
			"already_approved", stale.AlreadyApproved,
		)
	}
	return e.record(ctx, ActionMatchStale, SeverityWarning, OutcomeFailure,
		ResourceMatch, m.ID.String(), CategoryReconciliation, cause,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
