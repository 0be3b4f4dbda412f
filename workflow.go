package lettrage

import (
	"context"
	"fmt"

	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/match"
)

// Approve letters the member lines of a pending suggestion with a fresh
// lettrage code.
//
// Approval is optimistic: the store re-checks at write time that every member
// line is still unlettered. If one was lettered meanwhile, nothing is written,
// the suggestion is discarded and a *StaleMatchError is returned. Approving a
// suggestion twice also yields a *StaleMatchError. Approving a rejected
// suggestion returns ErrInvalidTransition.
func (e *Engine) Approve(ctx context.Context, matchID id.MatchID) error {
	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	if m.Status == match.StatusRejected {
		return fmt.Errorf("%w: match %s is rejected", ErrInvalidTransition, matchID)
	}

	code := id.NewLettrageCode().String()

	approved, err := e.store.SettleMatch(ctx, matchID, code, e.now())
	if err != nil {
		if stale, ok := asStale(err); ok {
			if !stale.AlreadyApproved {
				e.discard(ctx, m)
			}
			e.plugins.EmitMatchStale(ctx, m, err)
			e.logger.Warn("stale match not approved",
				"match_id", matchID.String(),
				"lettered", stale.Codes,
				"already_approved", stale.AlreadyApproved,
			)
		}
		return err
	}

	e.discardOverlapping(ctx, approved)
	e.plugins.EmitMatchApproved(ctx, approved)

	e.logger.Info("match approved",
		"match_id", matchID.String(),
		"lettrage_code", code,
		"lines", approved.LineIDs,
	)

	return nil
}

// discardOverlapping drops the other pending suggestions that share a line
// with an approved one. They could only fail as stale.
func (e *Engine) discardOverlapping(ctx context.Context, approved *match.Match) {
	for _, lid := range approved.LineIDs {
		others, err := e.store.ListMatches(ctx, match.ListOpts{
			Status: match.StatusPending,
			LineID: lid,
		})
		if err != nil {
			e.logger.Warn("failed to list overlapping suggestions",
				"line_id", lid,
				"error", err,
			)
			continue
		}
		for _, o := range others {
			if o.ID != approved.ID {
				e.discard(ctx, o)
			}
		}
	}
}

// Reject marks a pending suggestion as rejected. Lines are not touched and
// the pairing is not blacklisted: a later run proposes it again. Rejecting a
// rejected suggestion is a no-op; rejecting an approved one returns
// ErrInvalidTransition.
func (e *Engine) Reject(ctx context.Context, matchID id.MatchID) error {
	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	switch m.Status {
	case match.StatusRejected:
		return nil
	case match.StatusApproved:
		return fmt.Errorf("%w: match %s is approved", ErrInvalidTransition, matchID)
	}

	if err := e.store.RejectMatch(ctx, matchID, e.now()); err != nil {
		return err
	}

	rejected, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	e.plugins.EmitMatchRejected(ctx, rejected)
	e.logger.Info("match rejected", "match_id", matchID.String())

	return nil
}
