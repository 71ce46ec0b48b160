// Package migrations holds the Postgres schema for the gem catalog. Files
// are applied in name order and recorded with a checksum, so editing a
// migration that already ran is reported instead of silently skipped.
package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var migrationFiles embed.FS

// advisoryLockID serializes migrators across processes sharing a database.
const advisoryLockID int64 = 427190001

var ErrChecksumMismatch = errors.New("migration changed after it was applied")

type migration struct {
	name     string
	sql      string
	checksum string
}

// Apply brings the schema up to date and returns the names of the
// migrations it ran. Each migration and its bookkeeping row commit together.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	pending, err := load(migrationFiles)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedChecksums(ctx, conn.Conn())
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, m := range pending {
		if sum, ok := applied[m.name]; ok {
			if sum != "" && sum != m.checksum {
				return ran, fmt.Errorf("%w: %s", ErrChecksumMismatch, m.name)
			}
			continue
		}
		err := pgx.BeginFunc(ctx, conn.Conn(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return fmt.Errorf("exec migration %s: %w", m.name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (name, checksum) VALUES ($1, $2)`,
				m.name, m.checksum,
			); err != nil {
				return fmt.Errorf("record migration %s: %w", m.name, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, m.name)
	}
	return ran, nil
}

func load(fsys fs.ReadDirFS) ([]migration, error) {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		raw, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sql := strings.TrimSpace(string(raw))
		if sql == "" {
			continue
		}
		sum := sha256.Sum256([]byte(sql))
		out = append(out, migration{name: e.Name(), sql: sql, checksum: hex.EncodeToString(sum[:])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func appliedChecksums(ctx context.Context, conn *pgx.Conn) (map[string]string, error) {
	rows, err := conn.Query(ctx, `SELECT name, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	sums, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var pair [2]string
		err := row.Scan(&pair[0], &pair[1])
		return pair, err
	})
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	out := make(map[string]string, len(sums))
	for _, p := range sums {
		out[p[0]] = p[1]
	}
	return out, nil
}
