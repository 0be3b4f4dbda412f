package audithook

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/plugin"
	"github.com/xraph/lettrage/types"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func testMatch() *match.Match {
	return &match.Match{
		ID:           id.NewMatchID("d1", "c1"),
		Type:         match.TypeExact,
		Confidence:   100,
		Amount:       types.EUR(120000),
		LineIDs:      []string{"d1", "c1"},
		LettrageCode: "let_01h455vb4pex5vsknk084sn02q",
	}
}

func TestExtension_Events(t *testing.T) {
	ctx := context.Background()
	c := &captured{}
	ext := New(c.recorder())

	run := plugin.RunSummary{RunID: id.NewRunID(), Strategy: "greedy", Exact: 1}
	if err := ext.OnSuggestionsGenerated(ctx, run, []*match.Match{testMatch()}); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnMatchApproved(ctx, testMatch()); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnMatchRejected(ctx, testMatch()); err != nil {
		t.Fatal(err)
	}
	cause := &lettrage.StaleMatchError{Codes: map[string]string{"d1": "let_other"}}
	if err := ext.OnMatchStale(ctx, testMatch(), cause); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		action   string
		resource string
		severity string
		outcome  string
	}{
		{ActionRunCompleted, ResourceRun, SeverityInfo, OutcomeSuccess},
		{ActionMatchApproved, ResourceMatch, SeverityInfo, OutcomeSuccess},
		{ActionMatchRejected, ResourceMatch, SeverityInfo, OutcomeSuccess},
		{ActionMatchStale, ResourceMatch, SeverityWarning, OutcomeFailure},
	}
	if len(c.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(c.events), len(want))
	}
	for i, w := range want {
		evt := c.events[i]
		if evt.Action != w.action || evt.Resource != w.resource || evt.Severity != w.severity || evt.Outcome != w.outcome {
			t.Errorf("event %d = %s/%s/%s/%s, want %s/%s/%s/%s", i,
				evt.Action, evt.Resource, evt.Severity, evt.Outcome,
				w.action, w.resource, w.severity, w.outcome)
		}
		if evt.Category != CategoryReconciliation {
			t.Errorf("event %d category = %q", i, evt.Category)
		}
	}

	if got := c.events[1].Metadata["lettrage_code"]; got != testMatch().LettrageCode {
		t.Errorf("approved lettrage_code = %v", got)
	}
	stale := c.events[3]
	if stale.Reason == "" {
		t.Error("stale event should carry the cause as reason")
	}
	codes, ok := stale.Metadata["conflicting_codes"].(map[string]string)
	if !ok || codes["d1"] != "let_other" {
		t.Errorf("conflicting_codes = %v", stale.Metadata["conflicting_codes"])
	}
}

func TestExtension_ActionFilters(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"all enabled", nil, 3},
		{"only approved", []Option{WithEnabledActions(ActionMatchApproved)}, 1},
		{"rejected disabled", []Option{WithDisabledActions(ActionMatchRejected)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &captured{}
			ext := New(c.recorder(), tt.opts...)

			_ = ext.OnMatchApproved(ctx, testMatch())                      //nolint:errcheck // always nil
			_ = ext.OnMatchRejected(ctx, testMatch())                      //nolint:errcheck // always nil
			_ = ext.OnMatchStale(ctx, testMatch(), lettrage.ErrStaleMatch) //nolint:errcheck // always nil

			if len(c.events) != tt.want {
				t.Errorf("got %d events, want %d", len(c.events), tt.want)
			}
		})
	}
}

func TestExtension_RecorderFailureIsSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnMatchApproved(context.Background(), testMatch()); err != nil {
		t.Fatalf("recorder errors must not fail the hook: %v", err)
	}
}
