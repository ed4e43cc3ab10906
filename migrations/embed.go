// Package migrations embeds SQL migration files and applies them in name
// order. Statements are idempotent (IF NOT EXISTS), so applying on every
// startup is safe.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var FS embed.FS

// Apply runs every embedded migration against db.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, name := range entries {
		content, err := fs.ReadFile(FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
