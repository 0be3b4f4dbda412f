package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/plugin"
)

type fakeMetric struct {
	count    float64
	observed []float64
}

func (f *fakeMetric) Inc()              { f.count++ }
func (f *fakeMetric) Add(v float64)     { f.count += v }
func (f *fakeMetric) Observe(v float64) { f.observed = append(f.observed, v) }

type fakeFactory struct {
	metrics map[string]*fakeMetric
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{metrics: make(map[string]*fakeMetric)}
}

func (f *fakeFactory) get(name string) *fakeMetric {
	m, ok := f.metrics[name]
	if !ok {
		m = &fakeMetric{}
		f.metrics[name] = m
	}
	return m
}

func (f *fakeFactory) Counter(name string) Counter     { return f.get(name) }
func (f *fakeFactory) Histogram(name string) Histogram { return f.get(name) }

func TestMetricsExtension_Run(t *testing.T) {
	f := newFakeFactory()
	ext := NewMetricsExtension(f)
	ctx := context.Background()

	run := plugin.RunSummary{Unmatched: 4, Exact: 2, Partial: 1, Elapsed: 15 * time.Millisecond}
	matches := []*match.Match{{Confidence: 100}, {Confidence: 100}, {Confidence: 97}}
	if err := ext.OnSuggestionsGenerated(ctx, run, matches); err != nil {
		t.Fatalf("OnSuggestionsGenerated: %v", err)
	}

	if got := f.get("lettrage.runs").count; got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
	if got := f.get("lettrage.suggestions.exact").count; got != 2 {
		t.Errorf("exact = %v, want 2", got)
	}
	if got := f.get("lettrage.suggestions.partial").count; got != 1 {
		t.Errorf("partial = %v, want 1", got)
	}
	if got := f.get("lettrage.run.latency_ms").observed; len(got) != 1 || got[0] != 15 {
		t.Errorf("latency = %v, want [15]", got)
	}
	if got := f.get("lettrage.suggestions.confidence").observed; len(got) != 3 {
		t.Errorf("confidence observations = %d, want 3", len(got))
	}
}

func TestMetricsExtension_Review(t *testing.T) {
	f := newFakeFactory()
	ext := NewMetricsExtension(f)
	ctx := context.Background()

	approved := &match.Match{LineIDs: []string{"a", "b"}}
	if err := ext.OnMatchApproved(ctx, approved); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnMatchRejected(ctx, &match.Match{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		cause error
	}{
		{"lettered line", &lettrage.StaleMatchError{Codes: map[string]string{"a": "let_x"}}},
		{"already approved", &lettrage.StaleMatchError{AlreadyApproved: true}},
		{"wrapped", errors.Join(errors.New("approve"), &lettrage.StaleMatchError{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ext.OnMatchStale(ctx, &match.Match{}, tt.cause); err != nil {
				t.Fatal(err)
			}
		})
	}

	if got := f.get("lettrage.matches.approved").count; got != 1 {
		t.Errorf("approved = %v, want 1", got)
	}
	if got := f.get("lettrage.lines.lettered").count; got != 2 {
		t.Errorf("lettered = %v, want 2", got)
	}
	if got := f.get("lettrage.matches.rejected").count; got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := f.get("lettrage.matches.stale").count; got != 3 {
		t.Errorf("stale = %v, want 3", got)
	}
	if got := f.get("lettrage.matches.stale.already_approved").count; got != 1 {
		t.Errorf("already approved = %v, want 1", got)
	}
}
