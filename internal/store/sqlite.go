package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seantiz/runbroker/internal/model"

	_ "modernc.org/sqlite"
)

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id           TEXT PRIMARY KEY,
    language_key TEXT NOT NULL,
    runtime_id   INTEGER NOT NULL,
    driver       TEXT NOT NULL,
    endpoint     TEXT NOT NULL,
    source_code  TEXT NOT NULL,
    stdin        TEXT NOT NULL,
    outcome_text TEXT NOT NULL,
    outcome_kind TEXT NOT NULL,
    duration_ms  INTEGER NOT NULL,
    created_at   DATETIME NOT NULL
)`

const createExecutionsIndex = `
CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions (created_at)`

const selectExecutionColumns = `SELECT id, language_key, runtime_id, driver, endpoint,
	source_code, stdin, outcome_text, outcome_kind, duration_ms, created_at
FROM executions`

// ErrNotFound is returned when an execution record is not found.
var ErrNotFound = errors.New("execution not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createExecutionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create executions table: %w", err)
	}

	if _, err := db.Exec(createExecutionsIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("create executions index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts a new execution record.
func (s *SQLiteStore) Append(ctx context.Context, rec *model.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (
			id, language_key, runtime_id, driver, endpoint,
			source_code, stdin, outcome_text, outcome_kind, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.LanguageKey, rec.RuntimeID, rec.Driver, rec.Endpoint,
		rec.SourceCode, rec.Stdin, rec.OutcomeText, rec.OutcomeKind, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution record by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*model.AuditRecord, error) {
	rec, err := scanExecution(s.db.QueryRowContext(ctx, selectExecutionColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return rec, nil
}

// ListExecutions returns a paginated list of execution records ordered by
// created_at DESC, along with the total count of all records.
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit, offset int) ([]*model.AuditRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		selectExecutionColumns+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var records []*model.AuditRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate executions: %w", err)
	}

	return records, total, nil
}

// GetExecutionStats returns aggregate counts by outcome kind and language and
// the average execution duration.
func (s *SQLiteStore) GetExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	stats := &ExecutionStats{
		CountByKind:     make(map[string]int),
		CountByLanguage: make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM executions",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	if err := s.countBy(ctx, "outcome_kind", stats.CountByKind); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "language_key", stats.CountByLanguage); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills dst with per-value counts of column. column is always a
// constant supplied by this package.
func (s *SQLiteStore) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM executions GROUP BY "+column,
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan count by %s: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*model.AuditRecord, error) {
	rec := &model.AuditRecord{}
	err := row.Scan(
		&rec.ID, &rec.LanguageKey, &rec.RuntimeID, &rec.Driver, &rec.Endpoint,
		&rec.SourceCode, &rec.Stdin, &rec.OutcomeText, &rec.OutcomeKind, &rec.DurationMS, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
