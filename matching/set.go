// Package matching builds unmatched sets from ledger lines and pairs debits
// with credits through pluggable strategies.
package matching

import (
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/types"
)

// Set is the partition of a line snapshot that matching works on.
// Every slice keeps the order of the input.
type Set struct {
	Range    types.DateRange
	Debits   []*line.Line
	Credits  []*line.Line
	Lettered []*line.Line

	// Dropped counts unlettered in-range lines with neither a debit nor a credit.
	Dropped int

	accounts []string
}

// BuildSet partitions lines falling inside r (both bounds included).
// Lines with a lettrage code only go to Lettered. BuildSet is pure: the same
// input always yields the same lists.
func BuildSet(lines []*line.Line, r types.DateRange) *Set {
	s := &Set{Range: r}
	seen := make(map[string]bool)

	for _, l := range lines {
		if l == nil || !r.Contains(l.Date) {
			continue
		}
		if l.IsLettered() {
			s.Lettered = append(s.Lettered, l)
			continue
		}

		switch l.Side() {
		case line.SideDebit:
			s.Debits = append(s.Debits, l)
		case line.SideCredit:
			s.Credits = append(s.Credits, l)
		default:
			s.Dropped++
			continue
		}

		if !seen[l.AccountCode] {
			seen[l.AccountCode] = true
			s.accounts = append(s.accounts, l.AccountCode)
		}
	}

	return s
}

// Accounts lists the account codes of unmatched lines in first-seen order.
func (s *Set) Accounts() []string {
	return append([]string(nil), s.accounts...)
}

// DebitsFor returns the unmatched debits booked on accountCode.
func (s *Set) DebitsFor(accountCode string) []*line.Line {
	return filterAccount(s.Debits, accountCode)
}

// CreditsFor returns the unmatched credits booked on accountCode.
func (s *Set) CreditsFor(accountCode string) []*line.Line {
	return filterAccount(s.Credits, accountCode)
}

// Unmatched is the number of lines eligible for matching.
func (s *Set) Unmatched() int { return len(s.Debits) + len(s.Credits) }

// IsEmpty reports whether no pairing is possible.
func (s *Set) IsEmpty() bool { return len(s.Debits) == 0 || len(s.Credits) == 0 }

func filterAccount(lines []*line.Line, accountCode string) []*line.Line {
	var out []*line.Line
	for _, l := range lines {
		if l.AccountCode == accountCode {
			out = append(out, l)
		}
	}
	return out
}
