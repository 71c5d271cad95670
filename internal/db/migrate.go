package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// Migration is one .sql file in the migrations directory.
type Migration struct {
	Version string
	Applied bool
}

// Migrator applies the schema files in Dir in lexical order, recording each in
// schema_migrations.
type Migrator struct {
	Dir    string
	Logger *slog.Logger
}

// Status reports every migration file and whether it has been applied.
func (m Migrator) Status(ctx context.Context, conn *pgxpool.Conn) ([]Migration, error) {
	files, err := migrationFiles(m.Dir)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(files))
	for _, name := range files {
		_, ok := applied[name]
		out = append(out, Migration{Version: name, Applied: ok})
	}
	return out, nil
}

// Up applies pending migrations and returns the versions it applied.
func (m Migrator) Up(ctx context.Context, conn *pgxpool.Conn) ([]string, error) {
	status, err := m.Status(ctx, conn)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range status {
		if migration.Applied {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(m.Dir, migration.Version))
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", migration.Version, err)
		}
		if err := m.applyWithRetry(ctx, conn, migration.Version, string(contents)); err != nil {
			return done, err
		}
		m.logger().Info("applied migration", slog.String("version", migration.Version))
		done = append(done, migration.Version)
	}
	return done, nil
}

// Seed runs the seed file for name ("dev" resolves to dev_seed.sql) in dir.
func Seed(ctx context.Context, conn *pgxpool.Conn, dir, name string) (string, error) {
	if !strings.HasSuffix(name, ".sql") {
		name = fmt.Sprintf("%s_seed.sql", name)
	}
	contents, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return name, fmt.Errorf("read seed %s: %w", name, err)
	}
	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return name, fmt.Errorf("apply seed %s: %w", name, err)
	}
	return name, nil
}

func (m Migrator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func (m Migrator) applyWithRetry(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	var err error
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(migrationBackoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = applyOnce(ctx, conn, name, contents)
		if err == nil {
			return nil
		}
		if !shouldRetryMigration(err) {
			return err
		}
		m.logger().Warn("transient migration error",
			slog.String("version", name),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("apply migration %s: exceeded max retries (%d): %w", name, migrationMaxRetries, err)
}

func applyOnce(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, contents); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// migrationBackoff doubles from migrationBaseBackoff and caps at migrationMaxBackoff.
func migrationBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	backoff := migrationBaseBackoff << (attempt - 1)
	if backoff <= 0 || backoff > migrationMaxBackoff {
		return migrationMaxBackoff
	}
	return backoff
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}
