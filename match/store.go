package match

import (
	"context"
	"time"

	"github.com/xraph/lettrage/id"
)

// Store persists suggestions.
//
// UpsertMatches is keyed by match ID: a pending record is refreshed, a
// rejected record is re-proposed as pending and an approved record is left
// untouched. Re-running matching therefore never duplicates a suggestion.
type Store interface {
	UpsertMatches(ctx context.Context, matches []*Match) error
	GetMatch(ctx context.Context, matchID id.MatchID) (*Match, error)
	ListMatches(ctx context.Context, opts ListOpts) ([]*Match, error)
	CountMatches(ctx context.Context, opts ListOpts) (int, error)
	RejectMatch(ctx context.Context, matchID id.MatchID, at time.Time) error
	DeleteMatch(ctx context.Context, matchID id.MatchID) error
}

// ListOpts filters ListMatches and CountMatches. Zero values disable a filter.
type ListOpts struct {
	Status      Status
	AccountCode string
	LineID      string
	Start       time.Time
	End         time.Time
	Limit       int
	Offset      int
}

// Match reports whether m passes the filters in opts (ignoring paging).
func (o ListOpts) Match(m *Match) bool {
	if o.Status != "" && m.Status != o.Status {
		return false
	}
	if o.AccountCode != "" && m.AccountCode != o.AccountCode {
		return false
	}
	if !o.Start.IsZero() && m.Date.Before(o.Start) {
		return false
	}
	if !o.End.IsZero() && m.Date.After(o.End) {
		return false
	}
	if o.LineID != "" {
		found := false
		for _, lid := range m.LineIDs {
			if lid == o.LineID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
