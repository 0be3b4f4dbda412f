// Package line models postings on third-party sub-ledger accounts.
package line

import (
	"time"

	"github.com/xraph/lettrage/types"
)

// Side tells which column of the posting carries the amount.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
	SideNone   Side = "none"
)

// Line is one posting on a reconcilable (customer or supplier) account.
// Debit and Credit are non-negative and normally only one of them is set.
type Line struct {
	types.Entity
	ID             string      `json:"id"`
	AccountCode    string      `json:"account_code"`
	Date           time.Time   `json:"date"`
	Reference      string      `json:"reference"`
	Label          string      `json:"label"`
	Debit          types.Money `json:"debit"`
	Credit         types.Money `json:"credit"`
	LettrageCode   string      `json:"lettrage_code,omitempty"`
	ThirdPartyName string      `json:"third_party_name,omitempty"`
	JournalCode    string      `json:"journal_code,omitempty"`
	EntryID        string      `json:"entry_id,omitempty"`
}

// Side reports the posting side, preferring debit when both are set.
func (l *Line) Side() Side {
	switch {
	case l.Debit.IsPositive():
		return SideDebit
	case l.Credit.IsPositive():
		return SideCredit
	default:
		return SideNone
	}
}

// Amount returns the amount on the line's posting side.
func (l *Line) Amount() types.Money {
	if l.Side() == SideCredit {
		return l.Credit
	}
	return l.Debit
}

// IsLettered reports whether the line already belongs to a settlement group.
func (l *Line) IsLettered() bool { return l.LettrageCode != "" }

// Clone returns a copy that shares no mutable state with l.
func (l *Line) Clone() *Line {
	c := *l
	return &c
}
