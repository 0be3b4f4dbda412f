package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the migration executor used by Migrate.
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
)

// Migrations is the grove migration group for the lettrage store (SQLite).
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
    account_code     TEXT NOT NULL DEFAULT '',
    date             TEXT NOT NULL,
    reference        TEXT NOT NULL DEFAULT '',
    label            TEXT NOT NULL DEFAULT '',
    debit_amount     INTEGER NOT NULL DEFAULT 0,
    credit_amount    INTEGER NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT '',
    lettrage_code    TEXT NOT NULL DEFAULT '',
    third_party_name TEXT NOT NULL DEFAULT '',
    journal_code     TEXT NOT NULL DEFAULT '',
    entry_id         TEXT NOT NULL DEFAULT '',
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_lettrage_lines_date ON lettrage_lines (date);
CREATE INDEX IF NOT EXISTS idx_lettrage_lines_account ON lettrage_lines (account_code, date);
CREATE INDEX IF NOT EXISTS idx_lettrage_lines_code ON lettrage_lines (lettrage_code);
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
    run_id         TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL DEFAULT 'exact',
    status         TEXT NOT NULL DEFAULT 'pending',
    confidence     INTEGER NOT NULL DEFAULT 0,
    amount         INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT '',
    date           TEXT NOT NULL,
    reference      TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    account_code   TEXT NOT NULL DEFAULT '',
    debit_line_id  TEXT NOT NULL DEFAULT '',
    credit_line_id TEXT NOT NULL DEFAULT '',
    line_ids       TEXT NOT NULL DEFAULT '[]',
    strategy       TEXT NOT NULL DEFAULT '',
    lettrage_code  TEXT NOT NULL DEFAULT '',
    approved_at    DATETIME,
    rejected_at    DATETIME,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_lettrage_matches_status_date ON lettrage_matches (status, date);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_account ON lettrage_matches (account_code, status);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_debit ON lettrage_matches (debit_line_id);
CREATE INDEX IF NOT EXISTS idx_lettrage_matches_credit ON lettrage_matches (credit_line_id);
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
