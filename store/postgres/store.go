package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	lettragestore "github.com/xraph/lettrage/store"
)

// compile-time interface check
var _ lettragestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("lettrage/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %v", lettrage.ErrMigrationFailed, err)
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

// UpsertLines writes the batch in one transaction. The conflict clause keeps
// a stored lettrage code and the original created_at.
func (s *Store) UpsertLines(ctx context.Context, lines []*line.Line) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
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
			Set("account_code = EXCLUDED.account_code").
			Set("date = EXCLUDED.date").
			Set("reference = EXCLUDED.reference").
			Set("label = EXCLUDED.label").
			Set("debit_amount = EXCLUDED.debit_amount").
			Set("credit_amount = EXCLUDED.credit_amount").
			Set("currency = EXCLUDED.currency").
			Set("lettrage_code = CASE WHEN lettrage_lines.lettrage_code = '' THEN EXCLUDED.lettrage_code ELSE lettrage_lines.lettrage_code END").
			Set("third_party_name = EXCLUDED.third_party_name").
			Set("journal_code = EXCLUDED.journal_code").
			Set("entry_id = EXCLUDED.entry_id").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/postgres: upsert line %s: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetLine(ctx context.Context, lineID string) (*line.Line, error) {
	m := new(lineModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", lineID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lineID)
		}
		return nil, err
	}
	return fromLineModel(m), nil
}

func (s *Store) GetLines(ctx context.Context, lineIDs []string) ([]*line.Line, error) {
	if len(lineIDs) == 0 {
		return []*line.Line{}, nil
	}

	var models []lineModel
	err := s.pg.NewSelect(&models).
		Where("id = ANY($1)", lineIDs).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*line.Line, len(models))
	for i := range models {
		byID[models[i].ID] = fromLineModel(&models[i])
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.AccountCode != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("account_code = $%d", argIdx), opts.AccountCode)
	}
	if !opts.Start.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date >= $%d", argIdx), opts.Start)
	}
	if !opts.End.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date <= $%d", argIdx), opts.End)
	}
	if opts.LettrageCode != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("lettrage_code = $%d", argIdx), opts.LettrageCode)
	}
	if opts.Unlettered {
		q = q.Where("lettrage_code = ''")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("date ASC, seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*line.Line, len(models))
	for i := range models {
		result[i] = fromLineModel(&models[i])
	}
	return result, nil
}

// ==================== Match Store ====================

// UpsertMatches refreshes pending and rejected rows. Approved rows are locked
// and skipped.
func (s *Store) UpsertMatches(ctx context.Context, matches []*match.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
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
		Where("id = ANY($1)", ids).
		Where("status = $2", string(match.StatusApproved)).
		ForUpdate().
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
			Set("run_id = EXCLUDED.run_id").
			Set("type = EXCLUDED.type").
			Set("status = 'pending'").
			Set("confidence = EXCLUDED.confidence").
			Set("amount = EXCLUDED.amount").
			Set("currency = EXCLUDED.currency").
			Set("date = EXCLUDED.date").
			Set("reference = EXCLUDED.reference").
			Set("description = EXCLUDED.description").
			Set("account_code = EXCLUDED.account_code").
			Set("debit_line_id = EXCLUDED.debit_line_id").
			Set("credit_line_id = EXCLUDED.credit_line_id").
			Set("line_ids = EXCLUDED.line_ids").
			Set("strategy = EXCLUDED.strategy").
			Set("rejected_at = NULL").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/postgres: upsert match %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetMatch(ctx context.Context, matchID id.MatchID) (*match.Match, error) {
	m := new(matchModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", matchID.String()).
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
	q := filterMatches(s.pg.NewSelect(&models), opts)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("date ASC, seq ASC")

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
	n, err := filterMatches(s.pg.NewSelect((*matchModel)(nil)), opts).Count(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func filterMatches(q *pgdriver.SelectQuery, opts match.ListOpts) *pgdriver.SelectQuery {
	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.AccountCode != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("account_code = $%d", argIdx), opts.AccountCode)
	}
	if opts.LineID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("line_ids ? $%d", argIdx), opts.LineID)
	}
	if !opts.Start.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date >= $%d", argIdx), opts.Start)
	}
	if !opts.End.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date <= $%d", argIdx), opts.End)
	}
	return q
}

func (s *Store) RejectMatch(ctx context.Context, matchID id.MatchID, at time.Time) error {
	res, err := s.pg.NewUpdate((*matchModel)(nil)).
		Set("status = $1", string(match.StatusRejected)).
		Set("rejected_at = $2", at).
		Set("updated_at = $3", at).
		Where("id = $4", matchID.String()).
		Where("status = $5", string(match.StatusPending)).
		Exec(ctx)
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
	res, err := s.pg.NewDelete((*matchModel)(nil)).
		Where("id = $1", matchID.String()).
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

// SettleMatch locks the match row and its member lines, then letters every
// member line with a conditional update. The transaction only commits when
// each update hit exactly one still-unlettered row.
func (s *Store) SettleMatch(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	mm := new(matchModel)
	err = tx.NewSelect(mm).
		Where("id = $1", matchID.String()).
		ForUpdate().
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

	var members []lineModel
	err = tx.NewSelect(&members).
		Where("id = ANY($1)", m.LineIDs).
		OrderExpr("id ASC").
		ForUpdate().
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(members))
	lettered := make(map[string]string)
	for _, lm := range members {
		found[lm.ID] = true
		if lm.LettrageCode != "" {
			lettered[lm.ID] = lm.LettrageCode
		}
	}
	for _, lid := range m.LineIDs {
		if !found[lid] {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
	}
	if len(lettered) > 0 {
		return nil, &lettrage.StaleMatchError{
			MatchID: matchID.String(),
			LineIDs: m.LineIDs,
			Codes:   lettered,
		}
	}

	for _, lid := range m.LineIDs {
		res, err := tx.NewUpdate((*lineModel)(nil)).
			Set("lettrage_code = $1", code).
			Set("updated_at = $2", at).
			Where("id = $3", lid).
			Where("lettrage_code = ''").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, fmt.Errorf("%w: line %s changed during settlement", lettrage.ErrTransactionFailed, lid)
		}
	}

	_, err = tx.NewUpdate((*matchModel)(nil)).
		Set("status = $1", string(match.StatusApproved)).
		Set("lettrage_code = $2", code).
		Set("approved_at = $3", at).
		Set("updated_at = $4", at).
		Where("id = $5", matchID.String()).
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
