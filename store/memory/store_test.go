package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/types"
)

func day(d int) time.Time { return types.NewDate(2024, time.January, d) }

func debit(lid string, d int, cents int64) *line.Line {
	return &line.Line{ID: lid, AccountCode: "411A", Date: day(d), Debit: types.EUR(cents), Credit: types.Zero("eur")}
}

func credit(lid string, d int, cents int64) *line.Line {
	return &line.Line{ID: lid, AccountCode: "411A", Date: day(d), Debit: types.Zero("eur"), Credit: types.EUR(cents)}
}

func seed(t *testing.T) (*Store, *match.Match) {
	t.Helper()
	ctx := context.Background()
	s := New()

	d, c := debit("D1", 5, 10000), credit("C1", 6, 10000)
	if err := s.UpsertLines(ctx, []*line.Line{d, c}); err != nil {
		t.Fatalf("UpsertLines: %v", err)
	}
	m := match.New(d, c, match.TypeExact, 100)
	if err := s.UpsertMatches(ctx, []*match.Match{m}); err != nil {
		t.Fatalf("UpsertMatches: %v", err)
	}
	return s, m
}

func TestUpsertLinesKeepsLettrageCode(t *testing.T) {
	ctx := context.Background()
	s := New()

	l := debit("D1", 5, 10000)
	l.LettrageCode = "AA"
	if err := s.UpsertLines(ctx, []*line.Line{l}); err != nil {
		t.Fatal(err)
	}

	again := debit("D1", 5, 10000)
	again.Label = "refreshed"
	if err := s.UpsertLines(ctx, []*line.Line{again}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetLine(ctx, "D1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LettrageCode != "AA" {
		t.Errorf("LettrageCode: got %q, want AA", got.LettrageCode)
	}
	if got.Label != "refreshed" {
		t.Errorf("Label: got %q, want refreshed", got.Label)
	}
}

func TestListLinesOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	s := New()

	lines := []*line.Line{
		debit("D2", 9, 100),
		debit("D1", 3, 100),
		credit("C1", 9, 100),
		{ID: "X1", AccountCode: "401B", Date: day(4), Debit: types.EUR(5), Credit: types.Zero("eur")},
	}
	if err := s.UpsertLines(ctx, lines); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts line.ListOpts
		want []string
	}{
		{"all by date then insertion", line.ListOpts{}, []string{"D1", "X1", "D2", "C1"}},
		{"account", line.ListOpts{AccountCode: "401B"}, []string{"X1"}},
		{"range", line.ListOpts{Start: day(4), End: day(8)}, []string{"X1"}},
		{"paged", line.ListOpts{Offset: 1, Limit: 2}, []string{"X1", "D2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListLines(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("line %d: got %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestReturnedLinesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.UpsertLines(ctx, []*line.Line{debit("D1", 5, 100)}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetLine(ctx, "D1") //nolint:errcheck // checked below
	got.LettrageCode = "ZZ"

	again, err := s.GetLine(ctx, "D1")
	if err != nil {
		t.Fatal(err)
	}
	if again.IsLettered() {
		t.Error("mutating a returned line changed the store")
	}
}

func TestUpsertMatchesStatusRules(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	if err := s.RejectMatch(ctx, m.ID, day(7)); err != nil {
		t.Fatal(err)
	}

	// A rejected suggestion comes back as pending.
	if err := s.UpsertMatches(ctx, []*match.Match{m}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetMatch(ctx, m.ID) //nolint:errcheck // checked by status
	if got.Status != match.StatusPending || got.RejectedAt != nil {
		t.Errorf("after re-proposal: status %s, rejected_at %v", got.Status, got.RejectedAt)
	}

	if _, err := s.SettleMatch(ctx, m.ID, "let_1", day(8)); err != nil {
		t.Fatal(err)
	}

	// An approved suggestion is never touched.
	if err := s.UpsertMatches(ctx, []*match.Match{m}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetMatch(ctx, m.ID) //nolint:errcheck // checked by status
	if got.Status != match.StatusApproved || got.LettrageCode != "let_1" {
		t.Errorf("approved match was overwritten: %+v", got)
	}

	n, err := s.CountMatches(ctx, match.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountMatches: got %d, want 1", n)
	}
}

func TestSettleMatch(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	settled, err := s.SettleMatch(ctx, m.ID, "let_1", day(8))
	if err != nil {
		t.Fatalf("SettleMatch: %v", err)
	}
	if settled.Status != match.StatusApproved || settled.ApprovedAt == nil {
		t.Errorf("settled match: %+v", settled)
	}

	lines, err := s.GetLines(ctx, m.LineIDs)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range lines {
		if l.LettrageCode != "let_1" {
			t.Errorf("line %s: code %q, want let_1", l.ID, l.LettrageCode)
		}
	}

	_, err = s.SettleMatch(ctx, m.ID, "let_2", day(9))
	var stale *lettrage.StaleMatchError
	if !errors.As(err, &stale) || !stale.AlreadyApproved {
		t.Fatalf("second settle: got %v, want already-approved stale error", err)
	}
}

func TestSettleMatchStaleWritesNothing(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	// C1 gets lettered by some other path.
	c := credit("C1", 6, 10000)
	if err := s.UpsertLines(ctx, []*line.Line{c}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.lines["C1"].LettrageCode = "OTHER"
	s.mu.Unlock()

	_, err := s.SettleMatch(ctx, m.ID, "let_1", day(8))
	if !lettrage.IsStale(err) {
		t.Fatalf("got %v, want stale", err)
	}
	var stale *lettrage.StaleMatchError
	if !errors.As(err, &stale) || stale.Codes["C1"] != "OTHER" {
		t.Errorf("stale codes: %+v", stale)
	}

	d1, _ := s.GetLine(ctx, "D1") //nolint:errcheck // checked below
	if d1.IsLettered() {
		t.Error("D1 was lettered by a failed settlement")
	}
	got, _ := s.GetMatch(ctx, m.ID) //nolint:errcheck // checked below
	if got.Status != match.StatusPending {
		t.Errorf("status: got %s, want pending", got.Status)
	}
}

func TestSettleMatchConcurrent(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		stales    int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.SettleMatch(ctx, m.ID, "let_"+string(rune('a'+i)), day(8))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case lettrage.IsStale(err):
				stales++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || stales != workers-1 {
		t.Errorf("successes=%d stales=%d, want 1 and %d", successes, stales, workers-1)
	}
}

func TestRejectAndDelete(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	if err := s.RejectMatch(ctx, m.ID, day(7)); err != nil {
		t.Fatal(err)
	}
	if err := s.RejectMatch(ctx, m.ID, day(8)); err != nil {
		t.Errorf("second reject: %v", err)
	}

	if err := s.DeleteMatch(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMatch(ctx, m.ID); !errors.Is(err, lettrage.ErrMatchNotFound) {
		t.Errorf("after delete: got %v, want ErrMatchNotFound", err)
	}
	if err := s.DeleteMatch(ctx, m.ID); !lettrage.IsNotFound(err) {
		t.Errorf("second delete: got %v, want not found", err)
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, lettrage.ErrStoreClosed) {
		t.Errorf("Ping: got %v, want ErrStoreClosed", err)
	}
}
