// Package match models reconciliation suggestions and their review state.
package match

import (
	"time"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/types"
)

// Type classifies how a suggestion was produced.
type Type string

const (
	TypeExact   Type = "exact"
	TypePartial Type = "partial"

	// Labels reserved for future strategies. Nothing in this module produces them.
	TypeMLSuggestion Type = "ml_suggestion"
	TypeFuzzy        Type = "fuzzy"
	TypePattern      Type = "pattern"
)

// Status is the review state of a suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Match pairs a debit line with an offsetting credit line on the same account.
type Match struct {
	types.Entity
	ID           id.MatchID  `json:"id"`
	RunID        id.RunID    `json:"run_id"`
	Type         Type        `json:"type"`
	Status       Status      `json:"status"`
	Confidence   int         `json:"confidence"`
	Amount       types.Money `json:"amount"`
	Date         time.Time   `json:"date"`
	Reference    string      `json:"reference"`
	Description  string      `json:"description"`
	AccountCode  string      `json:"account_code"`
	DebitLineID  string      `json:"debit_line_id"`
	CreditLineID string      `json:"credit_line_id"`
	LineIDs      []string    `json:"line_ids"`
	Strategy     string      `json:"strategy"`
	LettrageCode string      `json:"lettrage_code,omitempty"`
	ApprovedAt   *time.Time  `json:"approved_at,omitempty"`
	RejectedAt   *time.Time  `json:"rejected_at,omitempty"`
}

// New builds a pending suggestion for a debit/credit pair. The amount is the
// debit-side amount and the descriptive fields come from the debit line.
func New(debit, credit *line.Line, typ Type, confidence int) *Match {
	return &Match{
		Entity:       types.NewEntity(),
		ID:           id.NewMatchID(debit.ID, credit.ID),
		Type:         typ,
		Status:       StatusPending,
		Confidence:   confidence,
		Amount:       debit.Debit,
		Date:         debit.Date,
		Reference:    debit.Reference,
		Description:  describe(debit, credit),
		AccountCode:  debit.AccountCode,
		DebitLineID:  debit.ID,
		CreditLineID: credit.ID,
		LineIDs:      []string{debit.ID, credit.ID},
	}
}

func describe(debit, credit *line.Line) string {
	switch {
	case debit.Label == "":
		return credit.Label
	case credit.Label == "" || credit.Label == debit.Label:
		return debit.Label
	default:
		return debit.Label + " / " + credit.Label
	}
}

// IsPending reports whether the suggestion still awaits review.
func (m *Match) IsPending() bool { return m.Status == StatusPending }

// Clone returns a deep copy of m.
func (m *Match) Clone() *Match {
	c := *m
	c.LineIDs = append([]string(nil), m.LineIDs...)
	if m.ApprovedAt != nil {
		t := *m.ApprovedAt
		c.ApprovedAt = &t
	}
	if m.RejectedAt != nil {
		t := *m.RejectedAt
		c.RejectedAt = &t
	}
	return &c
}

// Refresh copies the proposal fields of next into m and makes it pending
// again. Review fields and CreatedAt are left alone except for the rejection
// marker, which a new proposal clears.
func (m *Match) Refresh(next *Match) {
	m.RunID = next.RunID
	m.Type = next.Type
	m.Confidence = next.Confidence
	m.Amount = next.Amount
	m.Date = next.Date
	m.Reference = next.Reference
	m.Description = next.Description
	m.AccountCode = next.AccountCode
	m.DebitLineID = next.DebitLineID
	m.CreditLineID = next.CreditLineID
	m.LineIDs = append([]string(nil), next.LineIDs...)
	m.Strategy = next.Strategy
	m.Status = StatusPending
	m.RejectedAt = nil
	m.Touch()
}
