package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/types"
)

// ==================== Line models ====================

type lineModel struct {
	grove.BaseModel `grove:"table:lettrage_lines"`

	ID             string    `grove:"id,pk"`
	AccountCode    string    `grove:"account_code"`
	Date           time.Time `grove:"date"`
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
		Date:           types.Date(l.Date),
		Reference:      l.Reference,
		Label:          l.Label,
		DebitAmount:    l.Debit.Amount,
		CreditAmount:   l.Credit.Amount,
		Currency:       currency,
		LettrageCode:   l.LettrageCode,
		ThirdPartyName: l.ThirdPartyName,
		JournalCode:    l.JournalCode,
		EntryID:        l.EntryID,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func fromLineModel(m *lineModel) *line.Line {
	return &line.Line{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             m.ID,
		AccountCode:    m.AccountCode,
		Date:           types.Date(m.Date),
		Reference:      m.Reference,
		Label:          m.Label,
		Debit:          types.Money{Amount: m.DebitAmount, Currency: m.Currency},
		Credit:         types.Money{Amount: m.CreditAmount, Currency: m.Currency},
		LettrageCode:   m.LettrageCode,
		ThirdPartyName: m.ThirdPartyName,
		JournalCode:    m.JournalCode,
		EntryID:        m.EntryID,
	}
}

// ==================== Match models ====================

type matchModel struct {
	grove.BaseModel `grove:"table:lettrage_matches"`

	ID           string          `grove:"id,pk"`
	RunID        string          `grove:"run_id"`
	Type         string          `grove:"type"`
	Status       string          `grove:"status"`
	Confidence   int             `grove:"confidence"`
	Amount       int64           `grove:"amount"`
	Currency     string          `grove:"currency"`
	Date         time.Time       `grove:"date"`
	Reference    string          `grove:"reference"`
	Description  string          `grove:"description"`
	AccountCode  string          `grove:"account_code"`
	DebitLineID  string          `grove:"debit_line_id"`
	CreditLineID string          `grove:"credit_line_id"`
	LineIDs      json.RawMessage `grove:"line_ids,type:jsonb"`
	Strategy     string          `grove:"strategy"`
	LettrageCode string          `grove:"lettrage_code"`
	ApprovedAt   *time.Time      `grove:"approved_at"`
	RejectedAt   *time.Time      `grove:"rejected_at"`
	CreatedAt    time.Time       `grove:"created_at"`
	UpdatedAt    time.Time       `grove:"updated_at"`
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
		Date:         types.Date(m.Date),
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
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
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

	var lineIDs []string
	if len(m.LineIDs) > 0 {
		if err := json.Unmarshal(m.LineIDs, &lineIDs); err != nil {
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
		Date:         types.Date(m.Date),
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
