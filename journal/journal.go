// Package journal turns posted accounting entries into reconcilable ledger
// lines for the third-party accounts of a period.
package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/types"
)

// DefaultPrefixes are the chart-of-accounts classes holding supplier (40)
// and customer (41) sub-ledger accounts.
var DefaultPrefixes = []string{"40", "41"}

// Entry is a balanced accounting entry as posted by the bookkeeping process.
type Entry struct {
	ID          string      `json:"id"`
	JournalCode string      `json:"journal_code"`
	Date        time.Time   `json:"date"`
	Reference   string      `json:"reference"`
	Label       string      `json:"label"`
	Lines       []EntryLine `json:"lines"`
}

// EntryLine is one posting of an Entry.
type EntryLine struct {
	AccountCode    string      `json:"account_code"`
	Label          string      `json:"label,omitempty"`
	Debit          types.Money `json:"debit"`
	Credit         types.Money `json:"credit"`
	ThirdPartyName string      `json:"third_party_name,omitempty"`
	LettrageCode   string      `json:"lettrage_code,omitempty"`
}

// Reconcilable decides whether postings on an account take part in lettrage.
type Reconcilable func(accountCode string) bool

// AccountPrefixes accepts accounts starting with one of prefixes.
// With no prefixes it falls back to DefaultPrefixes.
func AccountPrefixes(prefixes ...string) Reconcilable {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	ps := append([]string(nil), prefixes...)
	return func(accountCode string) bool {
		for _, p := range ps {
			if strings.HasPrefix(accountCode, p) {
				return true
			}
		}
		return false
	}
}

// LineID is the ledger line identifier of the n-th posting (0-based) of an entry.
func LineID(entryID string, n int) string {
	return entryID + ":" + strconv.Itoa(n+1)
}

// Extract returns the reconcilable postings of entries dated inside r, in
// entry order. Line dates are truncated to the calendar day and an empty
// posting label falls back to the entry label.
func Extract(entries []Entry, r types.DateRange, reconcilable Reconcilable) []*line.Line {
	if reconcilable == nil {
		reconcilable = AccountPrefixes()
	}

	var out []*line.Line
	for _, e := range entries {
		if !r.Contains(e.Date) {
			continue
		}
		for n, el := range e.Lines {
			if !reconcilable(el.AccountCode) {
				continue
			}
			label := el.Label
			if label == "" {
				label = e.Label
			}
			out = append(out, &line.Line{
				Entity:         types.NewEntity(),
				ID:             LineID(e.ID, n),
				AccountCode:    el.AccountCode,
				Date:           types.Date(e.Date),
				Reference:      e.Reference,
				Label:          label,
				Debit:          el.Debit,
				Credit:         el.Credit,
				LettrageCode:   el.LettrageCode,
				ThirdPartyName: el.ThirdPartyName,
				JournalCode:    e.JournalCode,
				EntryID:        e.ID,
			})
		}
	}
	return out
}

// Issue describes one malformed posting.
type Issue struct {
	EntryID string
	Line    int
	Field   string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s line %d: %s: %s", i.EntryID, i.Line+1, i.Field, i.Message)
}

// Validate reports postings that matching cannot reason about: a missing
// entry id or account code, negative amounts, amounts on both sides, or
// debit and credit in different currencies. Matching never checks these
// itself, so callers validate before importing.
func Validate(entries []Entry) []Issue {
	var issues []Issue
	for _, e := range entries {
		if e.ID == "" {
			issues = append(issues, Issue{Line: -1, Field: "id", Message: "entry id is required"})
		}
		if e.Date.IsZero() {
			issues = append(issues, Issue{EntryID: e.ID, Line: -1, Field: "date", Message: "entry date is required"})
		}
		for n, el := range e.Lines {
			if el.AccountCode == "" {
				issues = append(issues, Issue{EntryID: e.ID, Line: n, Field: "account_code", Message: "account code is required"})
			}
			if el.Debit.IsNegative() {
				issues = append(issues, Issue{EntryID: e.ID, Line: n, Field: "debit", Message: "amount must not be negative"})
			}
			if el.Credit.IsNegative() {
				issues = append(issues, Issue{EntryID: e.ID, Line: n, Field: "credit", Message: "amount must not be negative"})
			}
			if el.Debit.IsPositive() && el.Credit.IsPositive() {
				issues = append(issues, Issue{EntryID: e.ID, Line: n, Field: "amount", Message: "posting has both a debit and a credit"})
			}
			if !el.Debit.SameCurrency(el.Credit) {
				issues = append(issues, Issue{EntryID: e.ID, Line: n, Field: "currency", Message: "debit and credit currencies differ"})
			}
		}
	}
	return issues
}
