package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Migrate creates every table and index that does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	// Without arguments pgx sends the script over the simple protocol, which
	// accepts several statements at once.
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
