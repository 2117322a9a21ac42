package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID serializes migrations across server instances starting together.
const migrationLockID = 0x7469_6d65

// Migrate applies every pending *.sql file in migrationsDir in lexical order,
// each inside its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Warn("migration unlock failed", "err", err)
		}
	}()

	pending, err := Pending(ctx, pool, migrationsDir)
	if err != nil {
		return err
	}
	for _, file := range pending {
		statements, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			return err
		}
		version := strings.TrimSuffix(file, ".sql")
		if err := applyMigration(ctx, conn.Conn(), version, string(statements)); err != nil {
			return err
		}
		slog.Info("migration applied", "version", version)
	}
	return nil
}

// Pending lists the migration files not yet recorded in schema_migrations.
func Pending(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) ([]string, error) {
	if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"); err != nil {
		return nil, err
	}
	files, err := migrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}
	return pendingFiles(files, applied), nil
}

func pendingFiles(files []string, applied map[string]bool) []string {
	var out []string
	for _, file := range files {
		if !applied[strings.TrimSuffix(file, ".sql")] {
			out = append(out, file)
		}
	}
	return out
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func applyMigration(ctx context.Context, conn *pgx.Conn, version, statements string) error {
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, statements); err != nil {
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		return err
	})
}
