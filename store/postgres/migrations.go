package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the migration executor used by Migrate.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the lettrage store.
var Migrations = migrate.NewGroup("lettrage")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_lettrage_lines",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lettrage_lines (
    id               TEXT PRIMARY KEY,
    seq              BIGSERIAL,
    account_code     TEXT NOT NULL DEFAULT '',
    date             DATE NOT NULL,
    reference        TEXT NOT NULL DEFAULT '',
    label            TEXT NOT NULL DEFAULT '',
    debit_amount     BIGINT NOT NULL DEFAULT 0,
    credit_amount    BIGINT NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT '',
    lettrage_code    TEXT NOT NULL DEFAULT '',
    third_party_name TEXT NOT NULL DEFAULT '',
    journal_code     TEXT NOT NULL DEFAULT '',
    entry_id         TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lettrage_lines_date ON lettrage_lines (date, seq);
CREATE INDEX IF NOT EXISTS idx_lettrage_lines_account ON lettrage_lines (account_code, date);
CREATE INDEX IF NOT EXISTS idx_lettrage_lines_unlettered ON lettrage_lines (date) WHERE lettrage_code = '';
CREATE INDEX IF NOT EXISTS idx_lettrage_lines_code ON lettrage_lines (lettrage_code) WHERE lettrage_code != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lettrage_lines`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lettrage_matches",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lettrage_matches (
    id             TEXT PRIMARY KEY,
    seq            BIGSERIAL,
    run_id         TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL DEFAULT 'exact',
    status         TEXT NOT NULL DEFAULT 'pending',
    confidence     INT NOT NULL DEFAULT 0,
    amount         BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT '',
    date           DATE NOT NULL,
    reference      TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    account_code   TEXT NOT NULL DEFAULT '',
    debit_line_id  TEXT NOT NULL DEFAULT '',
    credit_line_id TEXT NOT NULL DEFAULT '',
    line_ids       JSONB NOT NULL DEFAULT '[]',
    strategy       TEXT NOT NULL DEFAULT '',
    lettrage_code  TEXT NOT NULL DEFAULT '',
    approved_at    TIMESTAMPTZ,
    rejected_at    TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lettrage_matches_status_date ON lettrage_matches (status, date, seq);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_account ON lettrage_matches (account_code, status);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_line_ids ON lettrage_matches USING GIN (line_ids);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_run ON lettrage_matches (run_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lettrage_matches`)
				return err
			},
		},
	)
}
