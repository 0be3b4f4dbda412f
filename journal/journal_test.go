package journal

import (
	"reflect"
	"testing"
	"time"

	"github.com/xraph/lettrage/types"
)

func sale(entryID string, date time.Time, cents int64) Entry {
	return Entry{
		ID:          entryID,
		JournalCode: "VT",
		Date:        date,
		Reference:   "INV-" + entryID,
		Label:       "Sale " + entryID,
		Lines: []EntryLine{
			{AccountCode: "411ACME", Debit: types.EUR(cents), Credit: types.Zero("eur"), ThirdPartyName: "Acme"},
			{AccountCode: "706000", Label: "Services", Debit: types.Zero("eur"), Credit: types.EUR(cents)},
		},
	}
}

func TestAccountPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		prefixes []string
		account  string
		want     bool
	}{
		{"default customer", nil, "411000", true},
		{"default supplier", nil, "401SUP", true},
		{"default revenue", nil, "706000", false},
		{"custom match", []string{"467"}, "467100", true},
		{"custom excludes default", []string{"467"}, "411000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccountPrefixes(tt.prefixes...)(tt.account); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	r := types.NewDateRange(types.NewDate(2024, time.March, 1), types.NewDate(2024, time.March, 31))
	entries := []Entry{
		sale("E1", time.Date(2024, time.March, 1, 14, 30, 0, 0, time.UTC), 5000),
		sale("E2", types.NewDate(2024, time.April, 1), 7000),
		sale("E3", types.NewDate(2024, time.March, 31), 9000),
	}

	lines := Extract(entries, r, nil)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	got := []string{lines[0].ID, lines[1].ID}
	if want := []string{"E1:1", "E3:1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ids: got %v, want %v", got, want)
	}

	l := lines[0]
	if !l.Date.Equal(types.NewDate(2024, time.March, 1)) {
		t.Errorf("date not truncated: %s", l.Date)
	}
	if l.Label != "Sale E1" || l.Reference != "INV-E1" || l.JournalCode != "VT" || l.EntryID != "E1" {
		t.Errorf("provenance not copied: %+v", l)
	}
	if l.ThirdPartyName != "Acme" || !l.Debit.Equal(types.EUR(5000)) {
		t.Errorf("posting not copied: %+v", l)
	}

	again := Extract(entries, r, nil)
	if !reflect.DeepEqual([]string{again[0].ID, again[1].ID}, got) {
		t.Error("extraction is not repeatable")
	}
}

func TestValidate(t *testing.T) {
	good := sale("E1", types.NewDate(2024, time.March, 1), 5000)

	bad := Entry{
		ID:   "E2",
		Date: types.NewDate(2024, time.March, 2),
		Lines: []EntryLine{
			{AccountCode: "", Debit: types.EUR(100), Credit: types.Zero("eur")},
			{AccountCode: "411X", Debit: types.EUR(-100), Credit: types.Zero("eur")},
			{AccountCode: "411X", Debit: types.EUR(100), Credit: types.EUR(100)},
			{AccountCode: "411X", Debit: types.EUR(100), Credit: types.Zero("usd")},
		},
	}

	if issues := Validate([]Entry{good}); len(issues) != 0 {
		t.Fatalf("valid entry reported issues: %v", issues)
	}

	issues := Validate([]Entry{good, bad})
	fields := make([]string, 0, len(issues))
	for _, i := range issues {
		fields = append(fields, i.Field)
	}
	want := []string{"account_code", "debit", "amount", "currency"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields: got %v, want %v", fields, want)
	}
	if got := issues[1].String(); got != "E2 line 2: debit: amount must not be negative" {
		t.Errorf("String: got %q", got)
	}
}
