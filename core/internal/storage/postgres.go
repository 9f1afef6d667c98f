package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crnapay/crnapay-stack/common/database"
	"github.com/crnapay/crnapay-stack/core/migrations"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// PostgresWriter inserts rows into PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter connects to connString and verifies the connection.
func NewPostgresWriter(ctx context.Context, connString string, maxConns int32) (*PostgresWriter, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresWriter{pool: pool}, nil
}

// Close closes the pool.
func (w *PostgresWriter) Close() {
	w.pool.Close()
}

// Ping verifies the database is reachable.
func (w *PostgresWriter) Ping(ctx context.Context) error {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()
	return w.pool.Ping(ctx)
}

// InsertRow inserts one row into table.
func (w *PostgresWriter) InsertRow(ctx context.Context, table string, row submission.Row) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	if _, err := w.pool.Exec(ctx, insertSQL(table), row.Ordered()...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return newInsertError(table, fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code))
		}
		return newInsertError(table, err.Error())
	}
	return nil
}

// CountRows returns the number of rows stored for a submission ID.
func (w *PostgresWriter) CountRows(ctx context.Context, table, submissionID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1",
		identifier(table), submission.ColSubmissionID)

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var n int
	if err := w.pool.QueryRow(ctx, query, submissionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func insertSQL(table string) string {
	placeholders := make([]string, len(submission.Columns))
	for i, col := range submission.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col == submission.ColSubmissionTimestamp {
			// Sent as text so PostgreSQL parses the ISO-8601 stamp itself.
			placeholders[i] += "::text::timestamptz"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		identifier(table),
		strings.Join(submission.Columns, ", "),
		strings.Join(placeholders, ", "))
}

// identifier quotes a table name that may be schema-qualified.
func identifier(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// Migrate applies the embedded schema migrations to databaseURL.
func Migrate(databaseURL string) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, nil
}
