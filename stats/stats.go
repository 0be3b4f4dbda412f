// Package stats derives reporting counters from a ledger-line population.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/lettrage/line"
)

// Stats summarises the lettering state of a set of reconcilable lines.
type Stats struct {
	TotalLines     int     `json:"total_lines"`
	TotalUnmatched int     `json:"total_unmatched"`
	AutoMatched    int     `json:"auto_matched"`
	PendingReview  int     `json:"pending_review"`
	MatchRate      float64 `json:"match_rate"`
}

// Compute counts lettered and unlettered lines. MatchRate is the lettered
// share in percent, rounded to one decimal, and 0 for an empty population.
// pendingReview is passed through as the number of suggestions awaiting review.
func Compute(lines []*line.Line, pendingReview int) Stats {
	s := Stats{PendingReview: pendingReview}

	for _, l := range lines {
		if l == nil {
			continue
		}
		s.TotalLines++
		if l.IsLettered() {
			s.AutoMatched++
		} else {
			s.TotalUnmatched++
		}
	}

	s.MatchRate = Rate(s.AutoMatched, s.TotalLines)
	return s
}

// Rate returns matched/total*100 rounded to one decimal, or 0 when total is 0.
func Rate(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(matched)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		InexactFloat64()
}
