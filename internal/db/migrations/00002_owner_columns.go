package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func init() {
	goose.AddMigrationContext(upOwnerColumns, downOwnerColumns)
}

// Execer is the subset of *sql.Tx used by the column migration.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type column struct {
	name string
	ddl  string
}

// Deployments created before password gating and ownership existed may
// lack these columns, so each one is added only if absent.
var ownerColumns = []column{
	{name: "password_hash", ddl: `ALTER TABLE vault_items ADD COLUMN password_hash TEXT`},
	{name: "owner_id", ddl: `ALTER TABLE vault_items ADD COLUMN owner_id TEXT REFERENCES users(id) ON DELETE SET NULL`},
}

// AddMissingColumns adds password_hash and owner_id to vault_items when they
// are not present yet and returns the names of the columns it added.
func AddMissingColumns(ctx context.Context, q Execer) ([]string, error) {
	var added []string
	for _, c := range ownerColumns {
		var exists bool
		err := q.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM information_schema.columns
				 WHERE table_schema = current_schema()
				   AND table_name = 'vault_items'
				   AND column_name = $1
			)`, c.name).Scan(&exists)
		if err != nil {
			return added, fmt.Errorf("check column %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if _, err := q.ExecContext(ctx, c.ddl); err != nil {
			return added, fmt.Errorf("add column %s: %w", c.name, err)
		}
		added = append(added, c.name)
	}

	if _, err := q.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS vault_items_owner_id_idx ON vault_items (owner_id)`); err != nil {
		return added, fmt.Errorf("create owner index: %w", err)
	}
	return added, nil
}

func upOwnerColumns(ctx context.Context, tx *sql.Tx) error {
	added, err := AddMissingColumns(ctx, tx)
	for _, name := range added {
		zap.L().Info("added column to vault_items", zap.String("column", name))
	}
	return err
}

func downOwnerColumns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DROP INDEX IF EXISTS vault_items_owner_id_idx;
		ALTER TABLE vault_items DROP COLUMN IF EXISTS owner_id;
		ALTER TABLE vault_items DROP COLUMN IF EXISTS password_hash;
	`)
	return err
}
