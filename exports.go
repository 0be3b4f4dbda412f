package lettrage

import "github.com/xraph/lettrage/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// DateRange is re-exported from types package.
type DateRange = types.DateRange

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	EUR        = types.EUR
	USD        = types.USD
	GBP        = types.GBP
	CHF        = types.CHF
	JPY        = types.JPY
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.ParseMoney
)

// Re-export calendar helpers
var (
	NewDate      = types.NewDate
	NewDateRange = types.NewDateRange
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
