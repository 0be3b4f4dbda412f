package matching

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
)

// GreedyName is the registry name of the greedy first-fit strategy.
const GreedyName = "greedy"

// Tolerances applied by Greedy, in major currency units and as a ratio.
var (
	ExactTolerance   = decimal.RequireFromString("0.01")
	PartialTolerance = decimal.RequireFromString("0.05")
)

var hundred = decimal.NewFromInt(100)

// Greedy is the first-fit strategy. Debits are visited in input order and
// each takes the first unused credit of the same account whose amount is
// within tolerance, even when a later credit would be closer. Input order
// therefore decides the pairing when several credits qualify.
type Greedy struct{}

// NewGreedy returns the first-fit strategy.
func NewGreedy() *Greedy { return &Greedy{} }

// Name implements Strategy.
func (*Greedy) Name() string { return GreedyName }

// Match implements Strategy.
func (g *Greedy) Match(set *Set) []*match.Match {
	if set == nil || set.IsEmpty() {
		return nil
	}

	var out []*match.Match
	used := make(map[string]bool, len(set.Credits))

	for _, d := range set.Debits {
		for _, c := range set.Credits {
			if used[c.ID] || c.AccountCode != d.AccountCode {
				continue
			}
			typ, confidence, ok := Score(d, c)
			if !ok {
				continue
			}

			m := match.New(d, c, typ, confidence)
			m.Strategy = g.Name()
			out = append(out, m)
			used[c.ID] = true
			break
		}
	}

	return out
}

// Score compares a debit line with a credit line.
//
// A difference under ExactTolerance is an exact match with confidence 100.
// Otherwise a difference under PartialTolerance of the larger amount is a
// partial match with confidence round((1 - diff/max) * 100). Lines in
// different currencies never match.
func Score(debit, credit *line.Line) (match.Type, int, bool) {
	if !debit.Debit.SameCurrency(credit.Credit) {
		return "", 0, false
	}

	d := debit.Debit.Decimal()
	c := credit.Credit.Decimal()
	diff := d.Sub(c).Abs()

	if diff.LessThan(ExactTolerance) {
		return match.TypeExact, 100, true
	}

	largest := decimal.Max(d, c)
	if !largest.IsPositive() {
		return "", 0, false
	}

	ratio := diff.Div(largest)
	if !ratio.LessThan(PartialTolerance) {
		return "", 0, false
	}

	confidence := decimal.NewFromInt(1).Sub(ratio).Mul(hundred).Round(0).IntPart()
	return match.TypePartial, int(confidence), true
}
