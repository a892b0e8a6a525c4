package transfers

import (
	"context"
	"database/sql"
	"embed"
	"path"
	"sort"

	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded SQL migrations.
type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Up runs every migration in file name order (001_x.sql, 002_y.sql, ...).
// Scripts must be idempotent.
func (m *Migrator) Up(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read embedded migrations")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := migrationFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", entry.Name())
		}

		if _, err := m.db.ExecContext(ctx, string(raw)); err != nil {
			return errors.Wrapf(err, "exec migration %s", entry.Name())
		}
	}

	return nil
}
