package store

import (
	"context"
	"time"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
)

// Store is the unified storage interface for ledger lines and suggestions.
// Methods are declared explicitly rather than by embedding line.Store and
// match.Store so the full contract reads in one place.
type Store interface {
	// Line methods
	UpsertLines(ctx context.Context, lines []*line.Line) error
	GetLine(ctx context.Context, lineID string) (*line.Line, error)
	GetLines(ctx context.Context, lineIDs []string) ([]*line.Line, error)
	ListLines(ctx context.Context, opts line.ListOpts) ([]*line.Line, error)

	// Match methods
	UpsertMatches(ctx context.Context, matches []*match.Match) error
	GetMatch(ctx context.Context, matchID id.MatchID) (*match.Match, error)
	ListMatches(ctx context.Context, opts match.ListOpts) ([]*match.Match, error)
	CountMatches(ctx context.Context, opts match.ListOpts) (int, error)
	RejectMatch(ctx context.Context, matchID id.MatchID, at time.Time) error
	DeleteMatch(ctx context.Context, matchID id.MatchID) error

	// SettleMatch approves a pending match in one atomic unit: it checks that
	// the match is still pending and every member line is still unlettered,
	// then writes code on all member lines and marks the match approved.
	// If any check fails nothing is written; a lettered member line or an
	// already-approved match yields a *lettrage.StaleMatchError.
	SettleMatch(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies the per-domain interfaces.
var (
	_ line.Store  = Store(nil)
	_ match.Store = Store(nil)
)
