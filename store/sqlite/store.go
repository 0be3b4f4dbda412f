package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	lettragestore "github.com/xraph/lettrage/store"
)

// compile-time interface check
var _ lettragestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// SQLite admits a single writer, so every write method holds mu. A write
// that still hits a lock held by another process surfaces as
// ErrTransactionFailed, or as a StaleMatchError when settlement lost.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB

	mu sync.Mutex
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("lettrage/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %v", lettrage.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Line Store ====================

func (s *Store) UpsertLines(ctx context.Context, lines []*line.Line) error {
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, l := range lines {
		if l == nil {
			continue
		}
		_, err := tx.NewInsert(toLineModel(l)).
			OnConflict("(id) DO UPDATE").
			Set("account_code = excluded.account_code").
			Set("date = excluded.date").
			Set("reference = excluded.reference").
			Set("label = excluded.label").
			Set("debit_amount = excluded.debit_amount").
			Set("credit_amount = excluded.credit_amount").
			Set("currency = excluded.currency").
			Set("lettrage_code = CASE WHEN lettrage_lines.lettrage_code = '' THEN excluded.lettrage_code ELSE lettrage_lines.lettrage_code END").
			Set("third_party_name = excluded.third_party_name").
			Set("journal_code = excluded.journal_code").
			Set("entry_id = excluded.entry_id").
			Set("updated_at = excluded.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/sqlite: upsert line %s: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetLine(ctx context.Context, lineID string) (*line.Line, error) {
	m := new(lineModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", lineID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lineID)
		}
		return nil, err
	}
	return fromLineModel(m)
}

func (s *Store) GetLines(ctx context.Context, lineIDs []string) ([]*line.Line, error) {
	if len(lineIDs) == 0 {
		return []*line.Line{}, nil
	}

	var models []lineModel
	err := s.sdb.NewSelect(&models).
		Where("id IN ("+placeholders(len(lineIDs))+")", stringArgs(lineIDs)...).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*line.Line, len(models))
	for i := range models {
		l, err := fromLineModel(&models[i])
		if err != nil {
			return nil, err
		}
		byID[l.ID] = l
	}

	result := make([]*line.Line, 0, len(lineIDs))
	for _, lid := range lineIDs {
		l, ok := byID[lid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) ListLines(ctx context.Context, opts line.ListOpts) ([]*line.Line, error) {
	var models []lineModel
	q := s.sdb.NewSelect(&models)

	if opts.AccountCode != "" {
		q = q.Where("account_code = ?", opts.AccountCode)
	}
	if !opts.Start.IsZero() {
		q = q.Where("date >= ?", formatDate(opts.Start))
	}
	if !opts.End.IsZero() {
		q = q.Where("date <= ?", formatDate(opts.End))
	}
	if opts.LettrageCode != "" {
		q = q.Where("lettrage_code = ?", opts.LettrageCode)
	}
	if opts.Unlettered {
		q = q.Where("lettrage_code = ''")
	}
	q = page(q, opts.Limit, opts.Offset)
	q = q.OrderExpr("date ASC, rowid ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*line.Line, len(models))
	for i := range models {
		l, err := fromLineModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// ==================== Match Store ====================

// UpsertMatches refreshes pending and rejected rows and skips approved ones.
func (s *Store) UpsertMatches(ctx context.Context, matches []*match.Match) error {
	if len(matches) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			ids = append(ids, m.ID.String())
		}
	}
	var approved []matchModel
	err = tx.NewSelect(&approved).
		Where("id IN ("+placeholders(len(ids))+")", stringArgs(ids)...).
		Where("status = ?", string(match.StatusApproved)).
		Scan(ctx)
	if err != nil {
		return err
	}
	skip := make(map[string]bool, len(approved))
	for i := range approved {
		skip[approved[i].ID] = true
	}

	for _, m := range matches {
		if m == nil || skip[m.ID.String()] {
			continue
		}
		_, err := tx.NewInsert(toMatchModel(m)).
			OnConflict("(id) DO UPDATE").
			Set("run_id = excluded.run_id").
			Set("type = excluded.type").
			Set("status = 'pending'").
			Set("confidence = excluded.confidence").
			Set("amount = excluded.amount").
			Set("currency = excluded.currency").
			Set("date = excluded.date").
			Set("reference = excluded.reference").
			Set("description = excluded.description").
			Set("account_code = excluded.account_code").
			Set("debit_line_id = excluded.debit_line_id").
			Set("credit_line_id = excluded.credit_line_id").
			Set("line_ids = excluded.line_ids").
			Set("strategy = excluded.strategy").
			Set("rejected_at = NULL").
			Set("updated_at = excluded.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/sqlite: upsert match %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetMatch(ctx context.Context, matchID id.MatchID) (*match.Match, error) {
	m := new(matchModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", matchID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
		}
		return nil, err
	}
	return fromMatchModel(m)
}

func (s *Store) ListMatches(ctx context.Context, opts match.ListOpts) ([]*match.Match, error) {
	var models []matchModel
	q := filterMatches(s.sdb.NewSelect(&models), opts)

	q = page(q, opts.Limit, opts.Offset)
	q = q.OrderExpr("date ASC, rowid ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*match.Match, len(models))
	for i := range models {
		m, err := fromMatchModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}

func (s *Store) CountMatches(ctx context.Context, opts match.ListOpts) (int, error) {
	n, err := filterMatches(s.sdb.NewSelect((*matchModel)(nil)), opts).Count(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func filterMatches(q *sqlitedriver.SelectQuery, opts match.ListOpts) *sqlitedriver.SelectQuery {
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.AccountCode != "" {
		q = q.Where("account_code = ?", opts.AccountCode)
	}
	if opts.LineID != "" {
		q = q.Where("EXISTS (SELECT 1 FROM json_each(lettrage_matches.line_ids) WHERE json_each.value = ?)", opts.LineID)
	}
	if !opts.Start.IsZero() {
		q = q.Where("date >= ?", formatDate(opts.Start))
	}
	if !opts.End.IsZero() {
		q = q.Where("date <= ?", formatDate(opts.End))
	}
	return q
}

func (s *Store) RejectMatch(ctx context.Context, matchID id.MatchID, at time.Time) error {
	s.mu.Lock()
	res, err := s.sdb.NewUpdate((*matchModel)(nil)).
		Set("status = ?", string(match.StatusRejected)).
		Set("rejected_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", matchID.String()).
		Where("status = ?", string(match.StatusPending)).
		Exec(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	current, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if current.Status == match.StatusApproved {
		return fmt.Errorf("%w: match %s is approved", lettrage.ErrInvalidTransition, matchID)
	}
	return nil
}

func (s *Store) DeleteMatch(ctx context.Context, matchID id.MatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sdb.NewDelete((*matchModel)(nil)).
		Where("id = ?", matchID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
	}
	return nil
}

// SettleMatch letters each member line with a conditional update inside one
// transaction. Settlements are serialized by the store, so an update that
// finds its line already lettered means another approval won; the
// transaction is rolled back and the winning codes are reported.
func (s *Store) SettleMatch(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.settle(ctx, matchID, code, at)
	if err != nil && isBusy(err) {
		return nil, s.staleAfterBusy(ctx, matchID, err)
	}
	return m, err
}

func (s *Store) settle(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	mm := new(matchModel)
	err = tx.NewSelect(mm).
		Where("id = ?", matchID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
		}
		return nil, err
	}

	m, err := fromMatchModel(mm)
	if err != nil {
		return nil, err
	}

	switch m.Status {
	case match.StatusApproved:
		return nil, &lettrage.StaleMatchError{
			MatchID:         matchID.String(),
			LineIDs:         m.LineIDs,
			Codes:           map[string]string{},
			AlreadyApproved: true,
		}
	case match.StatusRejected:
		return nil, fmt.Errorf("%w: match %s is rejected", lettrage.ErrInvalidTransition, matchID)
	}

	updated := 0
	for _, lid := range m.LineIDs {
		res, err := tx.NewUpdate((*lineModel)(nil)).
			Set("lettrage_code = ?", code).
			Set("updated_at = ?", at.UTC()).
			Where("id = ?", lid).
			Where("lettrage_code = ''").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		updated += int(rows)
	}

	if updated != len(m.LineIDs) {
		var members []lineModel
		err := tx.NewSelect(&members).
			Where("id IN ("+placeholders(len(m.LineIDs))+")", stringArgs(m.LineIDs)...).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		if len(members) != len(m.LineIDs) {
			return nil, fmt.Errorf("%w: member of match %s", lettrage.ErrLineNotFound, matchID)
		}

		lettered := make(map[string]string)
		for _, lm := range members {
			if lm.LettrageCode != "" && lm.LettrageCode != code {
				lettered[lm.ID] = lm.LettrageCode
			}
		}
		return nil, &lettrage.StaleMatchError{
			MatchID: matchID.String(),
			LineIDs: m.LineIDs,
			Codes:   lettered,
		}
	}

	_, err = tx.NewUpdate((*matchModel)(nil)).
		Set("status = ?", string(match.StatusApproved)).
		Set("lettrage_code = ?", code).
		Set("approved_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", matchID.String()).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}

	m.Status = match.StatusApproved
	m.LettrageCode = code
	m.ApprovedAt = &at
	m.UpdatedAt = at
	return m, nil
}

// staleAfterBusy re-reads a match whose settlement failed on a lock held
// elsewhere and reports it as stale when the other writer lettered it.
func (s *Store) staleAfterBusy(ctx context.Context, matchID id.MatchID, cause error) error {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status == match.StatusApproved {
		return &lettrage.StaleMatchError{
			MatchID:         matchID.String(),
			LineIDs:         m.LineIDs,
			Codes:           map[string]string{},
			AlreadyApproved: true,
		}
	}

	members, err := s.GetLines(ctx, m.LineIDs)
	if err != nil {
		return err
	}
	lettered := make(map[string]string)
	for _, l := range members {
		if l.IsLettered() {
			lettered[l.ID] = l.LettrageCode
		}
	}
	if len(lettered) > 0 {
		return &lettrage.StaleMatchError{
			MatchID: matchID.String(),
			LineIDs: m.LineIDs,
			Codes:   lettered,
		}
	}
	return fmt.Errorf("%w: sqlite: %v", lettrage.ErrTransactionFailed, cause)
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func isBusy(err error) bool {
	var serr *moderncsqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// page applies limit and offset. SQLite rejects OFFSET without LIMIT, so an
// offset alone gets an unbounded limit.
func page(q *sqlitedriver.SelectQuery, limit, offset int) *sqlitedriver.SelectQuery {
	if offset > 0 && limit <= 0 {
		limit = math.MaxInt
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
