package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

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

// openStore opens an unmigrated store on a fresh database file.
func openStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	dsn := "file:" + filepath.Join(t.TempDir(), "lettrage.db") + "?_pragma=busy_timeout(5000)"
	if err := drv.Open(ctx, dsn); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() }) //nolint:errcheck // test teardown
	return s
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := openStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func seed(t *testing.T) (*Store, *match.Match) {
	t.Helper()
	ctx := context.Background()
	s := newStore(t)

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

func TestMigrateIsRepeatable(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestUpsertLinesKeepsLettrageCode(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	l := debit("D1", 5, 10000)
	l.LettrageCode = "AA"
	if err := s.UpsertLines(ctx, []*line.Line{l}); err != nil {
		t.Fatal(err)
	}

	again := debit("D1", 5, 10000)
	again.Label = "refreshed"
	again.LettrageCode = "BB"
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
	if !got.Date.Equal(day(5)) || got.Debit.Amount != 10000 || got.Debit.Currency != "eur" {
		t.Errorf("round trip: %+v", got)
	}
}

func TestGetLinesMissing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.UpsertLines(ctx, []*line.Line{debit("D1", 5, 100)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetLines(ctx, []string{"D1", "NOPE"}); !errors.Is(err, lettrage.ErrLineNotFound) {
		t.Errorf("got %v, want ErrLineNotFound", err)
	}
	if _, err := s.GetLine(ctx, "NOPE"); !lettrage.IsNotFound(err) {
		t.Errorf("GetLine: got %v, want not found", err)
	}
}

func TestListLinesOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

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
		{"offset only", line.ListOpts{Offset: 3}, []string{"C1"}},
		{"unlettered", line.ListOpts{Unlettered: true, AccountCode: "411A"}, []string{"D1", "D2", "C1"}},
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

func TestListMatchesByLine(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	d2, c2 := debit("D2", 7, 500), credit("C2", 8, 500)
	if err := s.UpsertLines(ctx, []*line.Line{d2, c2}); err != nil {
		t.Fatal(err)
	}
	other := match.New(d2, c2, match.TypeExact, 100)
	if err := s.UpsertMatches(ctx, []*match.Match{other}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListMatches(ctx, match.ListOpts{LineID: "C1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != m.ID {
		t.Fatalf("LineID filter: got %d matches", len(got))
	}
	if got[0].DebitLineID != "D1" || got[0].CreditLineID != "C1" || len(got[0].LineIDs) != 2 {
		t.Errorf("round trip: %+v", got[0])
	}

	all, err := s.ListMatches(ctx, match.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != m.ID {
		t.Errorf("ordering: got %d matches", len(all))
	}

	n, err := s.CountMatches(ctx, match.ListOpts{Status: match.StatusPending, Start: day(7), End: day(31)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountMatches: got %d, want 1", n)
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
	got, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
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
	got, err = s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != match.StatusApproved || got.LettrageCode != "let_1" {
		t.Errorf("approved match was overwritten: %+v", got)
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

	if err := s.RejectMatch(ctx, m.ID, day(9)); !errors.Is(err, lettrage.ErrInvalidTransition) {
		t.Errorf("reject approved: got %v, want ErrInvalidTransition", err)
	}
}

func TestSettleMatchStaleWritesNothing(t *testing.T) {
	ctx := context.Background()
	s, m := seed(t)

	// C1 gets lettered by some other path.
	_, err := s.sdb.NewUpdate((*lineModel)(nil)).
		Set("lettrage_code = ?", "OTHER").
		Where("id = ?", "C1").
		Exec(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.SettleMatch(ctx, m.ID, "let_1", day(8))
	if !lettrage.IsStale(err) {
		t.Fatalf("got %v, want stale", err)
	}
	var stale *lettrage.StaleMatchError
	if !errors.As(err, &stale) || stale.Codes["C1"] != "OTHER" {
		t.Errorf("stale codes: %+v", stale)
	}

	d1, err := s.GetLine(ctx, "D1")
	if err != nil {
		t.Fatal(err)
	}
	if d1.IsLettered() {
		t.Error("D1 was lettered by a failed settlement")
	}
	got, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
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

	lines, err := s.GetLines(ctx, m.LineIDs)
	if err != nil {
		t.Fatal(err)
	}
	if lines[0].LettrageCode == "" || lines[0].LettrageCode != lines[1].LettrageCode {
		t.Errorf("codes: %q and %q, want one shared code", lines[0].LettrageCode, lines[1].LettrageCode)
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

func TestEngineOnSQLite(t *testing.T) {
	ctx := context.Background()
	eng := lettrage.New(openStore(t))

	// Start runs the migrations through the registered sqlite executor.
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	lines := []*line.Line{debit("D1", 5, 10000), credit("C1", 6, 10000)}
	if err := eng.ImportLines(ctx, lines); err != nil {
		t.Fatal(err)
	}
	period := types.NewDateRange(day(1), day(31))
	suggestions, err := eng.Suggest(ctx, period)
	if err != nil || len(suggestions) != 1 {
		t.Fatalf("Suggest: %v (%d)", err, len(suggestions))
	}
	matchID := suggestions[0].ID

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = eng.Approve(ctx, matchID)
		}(i)
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case lettrage.IsStale(err):
			stale++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || stale != 1 {
		t.Fatalf("ok=%d stale=%d, want 1 and 1", ok, stale)
	}

	st, err := eng.Statistics(ctx, period)
	if err != nil {
		t.Fatal(err)
	}
	if st.MatchRate != 100 {
		t.Errorf("MatchRate = %v, want 100", st.MatchRate)
	}
}
