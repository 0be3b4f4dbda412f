package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/types"
)

// Calendar dates are stored as "2006-01-02" text so range filters compare
// lexically.

func formatDate(t time.Time) string { return types.Date(t).Format(time.DateOnly) }

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// ==================== Line models ====================

type lineModel struct {
	grove.BaseModel `grove:"table:lettrage_lines"`

	ID             string    `grove:"id,pk"`
	AccountCode    string    `grove:"account_code"`
	Date           string    `grove:"date"`
	Reference      string    `grove:"reference"`
	Label          string    `grove:"label"`
	DebitAmount    int64     `grove:"debit_amount"`
	CreditAmount   int64     `grove:"credit_amount"`
	Currency       string    `grove:"currency"`
	LettrageCode   string    `grove:"lettrage_code"`
	ThirdPartyName string    `grove:"third_party_name"`
	JournalCode    string    `grove:"journal_code"`
	EntryID        string    `grove:"entry_id"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toLineModel(l *line.Line) *lineModel {
	currency := l.Debit.Currency
	if currency == "" || (l.Debit.IsZero() && l.Credit.Currency != "") {
		currency = l.Credit.Currency
	}

	return &lineModel{
		ID:             l.ID,
		AccountCode:    l.AccountCode,
		Date:           formatDate(l.Date),
		Reference:      l.Reference,
		Label:          l.Label,
		DebitAmount:    l.Debit.Amount,
		CreditAmount:   l.Credit.Amount,
		Currency:       currency,
		LettrageCode:   l.LettrageCode,
		ThirdPartyName: l.ThirdPartyName,
		JournalCode:    l.JournalCode,
		EntryID:        l.EntryID,
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
	}
}

func fromLineModel(m *lineModel) (*line.Line, error) {
	date, err := parseDate(m.Date)
	if err != nil {
		return nil, err
	}

	return &line.Line{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             m.ID,
		AccountCode:    m.AccountCode,
		Date:           date,
		Reference:      m.Reference,
		Label:          m.Label,
		Debit:          types.Money{Amount: m.DebitAmount, Currency: m.Currency},
		Credit:         types.Money{Amount: m.CreditAmount, Currency: m.Currency},
		LettrageCode:   m.LettrageCode,
		ThirdPartyName: m.ThirdPartyName,
		JournalCode:    m.JournalCode,
		EntryID:        m.EntryID,
	}, nil
}

// ==================== Match models ====================

type matchModel struct {
	grove.BaseModel `grove:"table:lettrage_matches"`

	ID           string     `grove:"id,pk"`
	RunID        string     `grove:"run_id"`
	Type         string     `grove:"type"`
	Status       string     `grove:"status"`
	Confidence   int        `grove:"confidence"`
	Amount       int64      `grove:"amount"`
	Currency     string     `grove:"currency"`
	Date         string     `grove:"date"`
	Reference    string     `grove:"reference"`
	Description  string     `grove:"description"`
	AccountCode  string     `grove:"account_code"`
	DebitLineID  string     `grove:"debit_line_id"`
	CreditLineID string     `grove:"credit_line_id"`
	LineIDs      string     `grove:"line_ids"`
	Strategy     string     `grove:"strategy"`
	LettrageCode string     `grove:"lettrage_code"`
	ApprovedAt   *time.Time `grove:"approved_at"`
	RejectedAt   *time.Time `grove:"rejected_at"`
	CreatedAt    time.Time  `grove:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"`
}

func toMatchModel(m *match.Match) *matchModel {
	lineIDs, _ := json.Marshal(m.LineIDs) //nolint:errcheck // []string always marshals

	runID := ""
	if !m.RunID.IsNil() {
		runID = m.RunID.String()
	}

	return &matchModel{
		ID:           m.ID.String(),
		RunID:        runID,
		Type:         string(m.Type),
		Status:       string(m.Status),
		Confidence:   m.Confidence,
		Amount:       m.Amount.Amount,
		Currency:     m.Amount.Currency,
		Date:         formatDate(m.Date),
		Reference:    m.Reference,
		Description:  m.Description,
		AccountCode:  m.AccountCode,
		DebitLineID:  m.DebitLineID,
		CreditLineID: m.CreditLineID,
		LineIDs:      string(lineIDs),
		Strategy:     m.Strategy,
		LettrageCode: m.LettrageCode,
		ApprovedAt:   m.ApprovedAt,
		RejectedAt:   m.RejectedAt,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func fromMatchModel(m *matchModel) (*match.Match, error) {
	matchID, err := id.ParseMatchID(m.ID)
	if err != nil {
		return nil, err
	}

	var runID id.RunID
	if m.RunID != "" {
		runID, err = id.ParseRunID(m.RunID)
		if err != nil {
			return nil, err
		}
	}

	date, err := parseDate(m.Date)
	if err != nil {
		return nil, err
	}

	var lineIDs []string
	if m.LineIDs != "" {
		if err := json.Unmarshal([]byte(m.LineIDs), &lineIDs); err != nil {
			return nil, err
		}
	}

	return &match.Match{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           matchID,
		RunID:        runID,
		Type:         match.Type(m.Type),
		Status:       match.Status(m.Status),
		Confidence:   m.Confidence,
		Amount:       types.Money{Amount: m.Amount, Currency: m.Currency},
		Date:         date,
		Reference:    m.Reference,
		Description:  m.Description,
		AccountCode:  m.AccountCode,
		DebitLineID:  m.DebitLineID,
		CreditLineID: m.CreditLineID,
		LineIDs:      lineIDs,
		Strategy:     m.Strategy,
		LettrageCode: m.LettrageCode,
		ApprovedAt:   m.ApprovedAt,
		RejectedAt:   m.RejectedAt,
	}, nil
}
