package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type column struct {
	name string
	ddl  string
}

type table struct {
	name    string
	columns []column
}

// schema is the per-tenant layout. Columns are listed so that a table
// created by an older build can be healed with ALTER TABLE ADD COLUMN.
var schema = []table{
	{
		name: "balances",
		columns: []column{
			{"user_id", "TEXT PRIMARY KEY"},
			{"amount", "TEXT NOT NULL DEFAULT '0'"},
			{"updated_at", "BIGINT NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "transactions",
		columns: []column{
			{"id", "TEXT PRIMARY KEY"},
			{"user_id", "TEXT NOT NULL DEFAULT ''"},
			{"delta", "TEXT NOT NULL DEFAULT '0'"},
			{"reason", "TEXT NOT NULL DEFAULT ''"},
			{"created_at", "BIGINT NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "loans",
		columns: []column{
			{"id", "TEXT PRIMARY KEY"},
			{"user_id", "TEXT NOT NULL DEFAULT ''"},
			{"principal", "TEXT NOT NULL DEFAULT '0'"},
			{"apr_bps", "BIGINT NOT NULL DEFAULT 0"},
			{"term_days", "INTEGER NOT NULL DEFAULT 0"},
			{"start_ts", "BIGINT NOT NULL DEFAULT 0"},
			{"due_ts", "BIGINT NOT NULL DEFAULT 0"},
			{"accrued_interest", "TEXT NOT NULL DEFAULT '0'"},
			{"paid_principal", "TEXT NOT NULL DEFAULT '0'"},
			{"paid_interest", "TEXT NOT NULL DEFAULT '0'"},
			{"status", "TEXT NOT NULL DEFAULT 'active'"},
			{"last_accrual_ts", "BIGINT NOT NULL DEFAULT 0"},
			{"last_reminder_ts", "BIGINT NOT NULL DEFAULT 0"},
			{"reminder_count", "INTEGER NOT NULL DEFAULT 0"},
			{"created_at", "BIGINT NOT NULL DEFAULT 0"},
			{"updated_at", "BIGINT NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "loan_prefs",
		columns: []column{
			{"user_id", "TEXT PRIMARY KEY"},
			{"remind", "INTEGER NOT NULL DEFAULT 1"},
			{"snooze_until", "BIGINT NOT NULL DEFAULT 0"},
			{"credit_score", "INTEGER NOT NULL DEFAULT 600"},
		},
	},
	{
		name: "settings",
		columns: []column{
			{"key", "TEXT PRIMARY KEY"},
			{"value", "TEXT NOT NULL DEFAULT ''"},
		},
	},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_status_due ON loans (status, due_ts)`,
}

// Migrate creates missing tables, adds missing columns and ensures indexes.
// It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, createTableSQL(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		for _, c := range t.columns {
			if err := ensureColumn(ctx, db, t.name, c); err != nil {
				return err
			}
		}
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createTableSQL(t table) string {
	sql := "CREATE TABLE IF NOT EXISTS " + t.name + " ("
	for i, c := range t.columns {
		if i > 0 {
			sql += ", "
		}
		sql += c.name + " " + c.ddl
	}
	return sql + ")"
}

func ensureColumn(ctx context.Context, db *sqlx.DB, tableName string, c column) error {
	rows, err := db.QueryContext(ctx, "SELECT "+c.name+" FROM "+tableName+" WHERE 1=0")
	if err == nil {
		return rows.Close()
	}
	if !IsSchemaDrift(err) {
		return fmt.Errorf("inspect %s.%s: %w", tableName, c.name, err)
	}

	// Primary keys can only exist from table creation.
	ddl := c.ddl
	if ddl == "TEXT PRIMARY KEY" {
		return fmt.Errorf("table %s is missing its primary key column %s", tableName, c.name)
	}

	if _, err := db.ExecContext(ctx, "ALTER TABLE "+tableName+" ADD COLUMN "+c.name+" "+ddl); err != nil {
		return fmt.Errorf("add column %s.%s: %w", tableName, c.name, err)
	}
	return nil
}
