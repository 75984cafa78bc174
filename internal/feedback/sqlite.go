package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite flag store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFlag scans a row into a Flag struct.
func scanFlag(s scanner) (*Flag, error) {
	f := &Flag{}
	var status string

	err := s.Scan(
		&f.ID, &f.PMID, &f.Drug, &f.Field,
		&f.ReportedValue, &f.SuggestedValue, &f.Reason, &f.Reviewer,
		&status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Status = Status(status)
	return f, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS record_flags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pmid TEXT NOT NULL,
		drug TEXT NOT NULL,
		field TEXT NOT NULL,
		reported_value TEXT DEFAULT '',
		suggested_value TEXT DEFAULT '',
		reason TEXT DEFAULT '',
		reviewer TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pmid, drug, field)
	);

	CREATE INDEX IF NOT EXISTS idx_flags_pmid ON record_flags(pmid);
	CREATE INDEX IF NOT EXISTS idx_flags_status ON record_flags(status);
	CREATE INDEX IF NOT EXISTS idx_flags_created_at ON record_flags(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a flag.
func (s *SQLiteStore) Save(ctx context.Context, flag *Flag) error {
	now := time.Now()
	if flag.Status == "" {
		flag.Status = StatusOpen
	}

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM record_flags WHERE pmid = ? AND drug = ? AND field = ?",
		flag.PMID, flag.Drug, flag.Field,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		flag.ID = existingID
		flag.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE record_flags SET
				reported_value = ?,
				suggested_value = ?,
				reason = ?,
				reviewer = ?,
				status = ?,
				updated_at = ?
			WHERE id = ?
		`,
			flag.ReportedValue,
			flag.SuggestedValue,
			flag.Reason,
			flag.Reviewer,
			string(flag.Status),
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	flag.CreatedAt = now
	flag.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO record_flags (
			pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		flag.PMID,
		flag.Drug,
		flag.Field,
		flag.ReportedValue,
		flag.SuggestedValue,
		flag.Reason,
		flag.Reviewer,
		string(flag.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	flag.ID = id

	return nil
}

// Get retrieves the flag for a specific record field.
func (s *SQLiteStore) Get(ctx context.Context, pmid, drug, field string) (*Flag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		WHERE pmid = ? AND drug = ? AND field = ?
		LIMIT 1
	`, pmid, drug, field)

	f, err := scanFlag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return f, nil
}

// ListByPMID returns all flags raised against one study.
func (s *SQLiteStore) ListByPMID(ctx context.Context, pmid string) ([]*Flag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		WHERE pmid = ?
		ORDER BY created_at DESC
	`, pmid)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectFlags(rows)
}

// List returns all flags with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Flag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectFlags(rows)
}

func collectFlags(rows *sql.Rows) ([]*Flag, error) {
	var result []*Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// Count returns the total number of flags.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM record_flags").Scan(&count)
	return count, err
}

// Resolve marks a flag as resolved.
func (s *SQLiteStore) Resolve(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE record_flags SET status = ?, updated_at = ? WHERE id = ?",
		string(StatusResolved), time.Now(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no flag with id %d", id)
	}
	return nil
}

// Delete removes a flag by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM record_flags WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all flags to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list flags: %w", err)
	}

	export := &FlagExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Flags:      all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports flags from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export FlagExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, f := range export.Flags {
		existing, err := s.Get(ctx, f.PMID, f.Drug, f.Field)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, f); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
