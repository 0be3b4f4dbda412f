package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/id"
	"github.com/xraph/lettrage/line"
	"github.com/xraph/lettrage/match"
	lettragestore "github.com/xraph/lettrage/store"
)

// Collection name constants.
const (
	colLines   = "lettrage_lines"
	colMatches = "lettrage_matches"
)

// compile-time interface check
var _ lettragestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// SettleMatch runs inside a multi-document transaction, so the server must
// be a replica set or a sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the lettrage collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo %s indexes: %v", lettrage.ErrMigrationFailed, col, err)
		}
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

// UpsertLines writes each line with an upsert. The lettrage code and the
// insertion sequence are only written on insert; a stored code is never
// replaced.
func (s *Store) UpsertLines(ctx context.Context, lines []*line.Line) error {
	base := now().UnixNano()

	for i, l := range lines {
		if l == nil {
			continue
		}
		m := toLineModel(l)
		m.Seq = base + int64(i)

		_, err := s.mdb.NewUpdate((*lineModel)(nil)).
			Filter(bson.M{"_id": m.ID}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"account_code":     m.AccountCode,
					"date":             m.Date,
					"reference":        m.Reference,
					"label":            m.Label,
					"debit_amount":     m.DebitAmount,
					"credit_amount":    m.CreditAmount,
					"currency":         m.Currency,
					"third_party_name": m.ThirdPartyName,
					"journal_code":     m.JournalCode,
					"entry_id":         m.EntryID,
					"updated_at":       m.UpdatedAt,
				},
				"$setOnInsert": bson.M{
					"seq":           m.Seq,
					"lettrage_code": m.LettrageCode,
					"created_at":    m.CreatedAt,
				},
			}).
			Upsert().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/mongo: upsert line %s: %w", m.ID, err)
		}

		if m.LettrageCode == "" {
			continue
		}
		_, err = s.mdb.NewUpdate((*lineModel)(nil)).
			Filter(bson.M{"_id": m.ID, "lettrage_code": ""}).
			Set("lettrage_code", m.LettrageCode).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("lettrage/mongo: upsert line %s code: %w", m.ID, err)
		}
	}
	return nil
}

func (s *Store) GetLine(ctx context.Context, lineID string) (*line.Line, error) {
	var m lineModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": lineID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lineID)
		}
		return nil, fmt.Errorf("lettrage/mongo: get line: %w", err)
	}
	return fromLineModel(&m), nil
}

func (s *Store) GetLines(ctx context.Context, lineIDs []string) ([]*line.Line, error) {
	if len(lineIDs) == 0 {
		return []*line.Line{}, nil
	}

	byID, err := s.findLines(ctx, lineIDs)
	if err != nil {
		return nil, err
	}

	result := make([]*line.Line, 0, len(lineIDs))
	for _, lid := range lineIDs {
		m, ok := byID[lid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
		result = append(result, fromLineModel(m))
	}
	return result, nil
}

func (s *Store) findLines(ctx context.Context, lineIDs []string) (map[string]*lineModel, error) {
	var models []lineModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": lineIDs}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("lettrage/mongo: find lines: %w", err)
	}

	byID := make(map[string]*lineModel, len(models))
	for i := range models {
		byID[models[i].ID] = &models[i]
	}
	return byID, nil
}

func (s *Store) ListLines(ctx context.Context, opts line.ListOpts) ([]*line.Line, error) {
	var models []lineModel

	filter := bson.M{}
	if opts.AccountCode != "" {
		filter["account_code"] = opts.AccountCode
	}
	if dates := dateFilter(opts.Start, opts.End); dates != nil {
		filter["date"] = dates
	}
	switch {
	case opts.LettrageCode != "":
		filter["lettrage_code"] = opts.LettrageCode
	case opts.Unlettered:
		filter["lettrage_code"] = ""
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "date", Value: 1}, {Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("lettrage/mongo: list lines: %w", err)
	}

	result := make([]*line.Line, len(models))
	for i := range models {
		result[i] = fromLineModel(&models[i])
	}
	return result, nil
}

// ==================== Match Store ====================

// UpsertMatches refreshes pending and rejected documents. Approved documents
// fall outside the filter, so the upsert attempts an insert that fails on the
// primary key; that duplicate is the signal to leave the match alone.
func (s *Store) UpsertMatches(ctx context.Context, matches []*match.Match) error {
	base := now().UnixNano()

	for i, mt := range matches {
		if mt == nil {
			continue
		}
		m := toMatchModel(mt)

		_, err := s.mdb.NewUpdate((*matchModel)(nil)).
			Filter(bson.M{
				"_id":    m.ID,
				"status": bson.M{"$ne": string(match.StatusApproved)},
			}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"run_id":         m.RunID,
					"type":           m.Type,
					"status":         string(match.StatusPending),
					"confidence":     m.Confidence,
					"amount":         m.Amount,
					"currency":       m.Currency,
					"date":           m.Date,
					"reference":      m.Reference,
					"description":    m.Description,
					"account_code":   m.AccountCode,
					"debit_line_id":  m.DebitLineID,
					"credit_line_id": m.CreditLineID,
					"line_ids":       m.LineIDs,
					"strategy":       m.Strategy,
					"updated_at":     m.UpdatedAt,
				},
				"$unset": bson.M{"rejected_at": ""},
				"$setOnInsert": bson.M{
					"seq":           base + int64(i),
					"lettrage_code": "",
					"created_at":    m.CreatedAt,
				},
			}).
			Upsert().
			Exec(ctx)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("lettrage/mongo: upsert match %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, matchID id.MatchID) (*match.Match, error) {
	var m matchModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": matchID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
		}
		return nil, fmt.Errorf("lettrage/mongo: get match: %w", err)
	}
	return fromMatchModel(&m)
}

func (s *Store) ListMatches(ctx context.Context, opts match.ListOpts) ([]*match.Match, error) {
	var models []matchModel

	q := s.mdb.NewFind(&models).
		Filter(matchFilter(opts)).
		Sort(bson.D{{Key: "date", Value: 1}, {Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("lettrage/mongo: list matches: %w", err)
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
	n, err := s.mdb.NewFind((*matchModel)(nil)).
		Filter(matchFilter(opts)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("lettrage/mongo: count matches: %w", err)
	}
	return int(n), nil
}

func matchFilter(opts match.ListOpts) bson.M {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.AccountCode != "" {
		filter["account_code"] = opts.AccountCode
	}
	if opts.LineID != "" {
		filter["line_ids"] = opts.LineID
	}
	if dates := dateFilter(opts.Start, opts.End); dates != nil {
		filter["date"] = dates
	}
	return filter
}

func (s *Store) RejectMatch(ctx context.Context, matchID id.MatchID, at time.Time) error {
	res, err := s.mdb.NewUpdate((*matchModel)(nil)).
		Filter(bson.M{"_id": matchID.String(), "status": string(match.StatusPending)}).
		Set("status", string(match.StatusRejected)).
		Set("rejected_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lettrage/mongo: reject match: %w", err)
	}
	if res.MatchedCount() > 0 {
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
	res, err := s.mdb.NewDelete((*matchModel)(nil)).
		Filter(bson.M{"_id": matchID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lettrage/mongo: delete match: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("%w: %s", lettrage.ErrMatchNotFound, matchID)
	}
	return nil
}

// SettleMatch letters the member lines and approves the match inside one
// session transaction. Concurrent writers on the same line surface as a
// write conflict, which the driver retries; the retry then observes the
// winner's code and reports the match as stale.
func (s *Store) SettleMatch(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lettrage.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return s.settle(sc, matchID, code, at.UTC())
	})
	if err != nil {
		return nil, err
	}
	m, ok := out.(*match.Match)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected settlement result %T", lettrage.ErrTransactionFailed, out)
	}
	return m, nil
}

func (s *Store) settle(ctx context.Context, matchID id.MatchID, code string, at time.Time) (*match.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
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

	members, err := s.findLines(ctx, m.LineIDs)
	if err != nil {
		return nil, err
	}

	lettered := make(map[string]string)
	for _, lid := range m.LineIDs {
		lm, ok := members[lid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", lettrage.ErrLineNotFound, lid)
		}
		if lm.LettrageCode != "" {
			lettered[lid] = lm.LettrageCode
		}
	}
	if len(lettered) > 0 {
		return nil, &lettrage.StaleMatchError{
			MatchID: matchID.String(),
			LineIDs: m.LineIDs,
			Codes:   lettered,
		}
	}

	res, err := s.mdb.NewUpdate((*lineModel)(nil)).
		Filter(bson.M{"_id": bson.M{"$in": m.LineIDs}, "lettrage_code": ""}).
		Set("lettrage_code", code).
		Set("updated_at", at).
		Many().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("lettrage/mongo: letter lines: %w", err)
	}
	if res.ModifiedCount() != int64(len(m.LineIDs)) {
		return nil, fmt.Errorf("%w: lines of match %s changed during settlement", lettrage.ErrTransactionFailed, matchID)
	}

	_, err = s.mdb.NewUpdate((*matchModel)(nil)).
		Filter(bson.M{"_id": matchID.String()}).
		Set("status", string(match.StatusApproved)).
		Set("lettrage_code", code).
		Set("approved_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("lettrage/mongo: approve match: %w", err)
	}

	m.Status = match.StatusApproved
	m.LettrageCode = code
	m.ApprovedAt = &at
	m.UpdatedAt = at
	return m, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// dateFilter builds an inclusive calendar range, or nil when both bounds
// are open.
func dateFilter(start, end time.Time) bson.M {
	if start.IsZero() && end.IsZero() {
		return nil
	}
	f := bson.M{}
	if !start.IsZero() {
		f["$gte"] = start
	}
	if !end.IsZero() {
		f["$lte"] = end
	}
	return f
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the lettrage collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLines: {
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "account_code", Value: 1}, {Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "lettrage_code", Value: 1}}},
		},
		colMatches: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "account_code", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "line_ids", Value: 1}}},
			{
				Keys:    bson.D{{Key: "run_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
	}
}
