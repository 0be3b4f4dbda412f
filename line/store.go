package line

import (
	"context"
	"time"
)

// Store persists ledger lines. Implementations return copies so callers
// always work on a snapshot.
type Store interface {
	// UpsertLines inserts lines or refreshes their descriptive fields.
	// An existing lettrage code is never cleared or replaced by an upsert.
	UpsertLines(ctx context.Context, lines []*Line) error
	GetLine(ctx context.Context, lineID string) (*Line, error)
	GetLines(ctx context.Context, lineIDs []string) ([]*Line, error)
	ListLines(ctx context.Context, opts ListOpts) ([]*Line, error)
}

// ListOpts filters ListLines. Zero values disable a filter. Results are
// ordered by date, then by insertion order.
type ListOpts struct {
	AccountCode  string
	Start        time.Time
	End          time.Time
	LettrageCode string
	Unlettered   bool
	Limit        int
	Offset       int
}

// Match reports whether l passes the filters in opts (ignoring paging).
func (o ListOpts) Match(l *Line) bool {
	if o.AccountCode != "" && l.AccountCode != o.AccountCode {
		return false
	}
	if !o.Start.IsZero() && l.Date.Before(o.Start) {
		return false
	}
	if !o.End.IsZero() && l.Date.After(o.End) {
		return false
	}
	if o.LettrageCode != "" && l.LettrageCode != o.LettrageCode {
		return false
	}
	if o.Unlettered && l.IsLettered() {
		return false
	}
	return true
}
