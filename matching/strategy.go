package matching

import "github.com/xraph/lettrage/match"

// Strategy proposes suggestions from an unmatched set.
//
// Implementations must be pure with respect to the set: they read it, never
// modify it, and keep no state between calls. Every returned match must pair
// lines of the same account, and no line may appear in two returned matches.
type Strategy interface {
	Name() string
	Match(set *Set) []*match.Match
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc struct {
	StrategyName string
	Fn           func(set *Set) []*match.Match
}

// Name implements Strategy.
func (f StrategyFunc) Name() string { return f.StrategyName }

// Match implements Strategy.
func (f StrategyFunc) Match(set *Set) []*match.Match { return f.Fn(set) }
