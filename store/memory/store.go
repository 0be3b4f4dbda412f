// Package memory provides an in-memory store.Store for tests and
// single-process use. All methods are safe for concurrent use and return
// copies, so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Line storage, with insertion order kept for stable listing
	lines     map[string]*line.Line
	lineOrder []string

	// Match storage
	matches    map[string]*match.Match
	matchOrder []string

	closed bool
}

func New() *Store {
	return &Store{
		lines:   make(map[string]*line.Line),
		matches: make(map[string]*match.Match),
	}
}

// ==================== Line Store ====================

func (s *Store) UpsertLines(_ context.Context, lines []*line.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lettrage.ErrStoreClosed
	}

	for _, l := range lines {
		if l == nil {
			continue
		}
		next := l.Clone()

		existing, ok := s.lines[l.ID]
		if !ok {
			s.lines[l.ID] = next
			s.lineOrder = append(s.lineOrder, l.ID)
			continue
		}

		// A stored code always wins.
		if existing.IsLettered() {
			next.LettrageCode = existing.LettrageCode
		}
		if !existing.CreatedAt.IsZero() {
			next.CreatedAt = existing.CreatedAt
		}
		s.lines[l.ID] = next
	}
	return nil
}

func (s *Store) GetLine(_ context.Context, lineID string) (*line.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.lines[lineID]; ok {
		return l.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lineID)
}

func (s *Store) GetLines(_ context.Context, lineIDs []string) ([]*line.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*line.Line, 0, len(lineIDs))
	for _, lid := range lineIDs {
		l, ok := s.lines[lid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
		result = append(result, l.Clone())
	}
	return result, nil
}

func (s *Store) ListLines(_ context.Context, opts line.ListOpts) ([]*line.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*line.Line, 0)
	for _, lid := range s.lineOrder {
		l := s.lines[lid]
		if opts.Match(l) {
			result = append(result, l.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Match Store ====================

func (s *Store) UpsertMatches(_ context.Context, matches []*match.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lettrage.ErrStoreClosed
	}

	for _, m := range matches {
		if m == nil {
			continue
		}
		key := m.ID.String()

		existing, ok := s.matches[key]
		if !ok {
			s.matches[key] = m.Clone()
			s.matchOrder = append(s.matchOrder, key)
			continue
		}
		if existing.Status == match.StatusApproved {
			continue
		}
		existing.Refresh(m)
	}
	return nil
}

func (s *Store) GetMatch(_ context.Context, matchID id.MatchID) (*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.matches[matchID.String()]; ok {
		return m.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
}

func (s *Store) ListMatches(_ context.Context, opts match.ListOpts) ([]*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filterMatches(opts)
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountMatches(_ context.Context, opts match.ListOpts) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterMatches(opts)), nil
}

func (s *Store) filterMatches(opts match.ListOpts) []*match.Match {
	result := make([]*match.Match, 0)
	for _, key := range s.matchOrder {
		m := s.matches[key]
		if opts.Match(m) {
			result = append(result, m.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

func (s *Store) RejectMatch(_ context.Context, matchID id.MatchID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID.String()]
	if !ok {
		return fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
	}

	switch m.Status {
	case match.StatusRejected:
		return nil
	case match.StatusApproved:
		return fmt.Errorf("%w: match %s is approved", lettrage.ErrInvalidTransition, matchID)
	}

	m.Status = match.StatusRejected
	m.RejectedAt = &at
	m.UpdatedAt = at
	return nil
}

func (s *Store) DeleteMatch(_ context.Context, matchID id.MatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := matchID.String()
	if _, ok := s.matches[key]; !ok {
		return fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
	}

	delete(s.matches, key)
	for i, k := range s.matchOrder {
		if k == key {
			s.matchOrder = append(s.matchOrder[:i], s.matchOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SettleMatch runs under the write lock, so the check and the write of every
// member line form one atomic step.
func (s *Store) SettleMatch(_ context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, lettrage.ErrStoreClosed
	}

	m, ok := s.matches[matchID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
	}

	switch m.Status {
	case match.StatusApproved:
		return nil, &lettrage.StaleMatchError{
			MatchID:         matchID.String(),
			LineIDs:         append([]string(nil), m.LineIDs...),
			Codes:           map[string]string{},
			AlreadyApproved: true,
		}
	case match.StatusRejected:
		return nil, fmt.Errorf("%w: match %s is rejected", lettrage.ErrInvalidTransition, matchID)
	}

	members := make([]*line.Line, 0, len(m.LineIDs))
	lettered := make(map[string]string)
	for _, lid := range m.LineIDs {
		l, ok := s.lines[lid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
		if l.IsLettered() {
			lettered[lid] = l.LettrageCode
		}
		members = append(members, l)
	}

	if len(lettered) > 0 {
		return nil, &lettrage.StaleMatchError{
			MatchID: matchID.String(),
			LineIDs: append([]string(nil), m.LineIDs...),
			Codes:   lettered,
		}
	}

	for _, l := range members {
		l.LettrageCode = code
		l.UpdatedAt = at
	}

	m.Status = match.StatusApproved
	m.LettrageCode = code
	m.ApprovedAt = &at
	m.UpdatedAt = at

	return m.Clone(), nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return lettrage.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
