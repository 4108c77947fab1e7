package store

import (
	"context"
	_ "embed"
	"strings"

	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/database"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the engine's schema. Every statement is
// CREATE ... IF NOT EXISTS, so this is safe to run repeatedly and is the
// whole of the `migrate` subcommand's behavior (spec.md §6); there is no
// ecosystem migration runner in the dependency set this engine draws
// from, so statements are split and executed directly against db.
func Migrate(ctx context.Context, db *database.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errs.New(errs.Internal, "store.Migrate", err)
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
