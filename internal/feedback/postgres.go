package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL flag store.
// It expects the record_flags table to already exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL flag store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates a flag.
func (s *PostgresStore) Save(ctx context.Context, flag *Flag) error {
	now := time.Now()
	if flag.Status == "" {
		flag.Status = StatusOpen
	}

	// Use upsert (INSERT ... ON CONFLICT)
	query := `
		INSERT INTO record_flags (
			pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pmid, drug, field) DO UPDATE SET
			reported_value = EXCLUDED.reported_value,
			suggested_value = EXCLUDED.suggested_value,
			reason = EXCLUDED.reason,
			reviewer = EXCLUDED.reviewer,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
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
	).Scan(&flag.ID, &flag.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save flag: %w", err)
	}

	flag.UpdatedAt = now
	return nil
}

// Get retrieves the flag for a specific record field.
func (s *PostgresStore) Get(ctx context.Context, pmid, drug, field string) (*Flag, error) {
	query := `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		WHERE pmid = $1 AND drug = $2 AND field = $3
		LIMIT 1
	`

	f := &Flag{}
	var status string

	err := s.db.QueryRowContext(ctx, query, pmid, drug, field).Scan(
		&f.ID, &f.PMID, &f.Drug, &f.Field,
		&f.ReportedValue, &f.SuggestedValue, &f.Reason, &f.Reviewer,
		&status, &f.CreatedAt, &f.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}

	f.Status = Status(status)
	return f, nil
}

// ListByPMID returns all flags raised against one study.
func (s *PostgresStore) ListByPMID(ctx context.Context, pmid string) ([]*Flag, error) {
	query := `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		WHERE pmid = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, pmid)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	return scanFlagRows(rows)
}

// List returns all flags with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Flag, error) {
	query := `
		SELECT id, pmid, drug, field,
			reported_value, suggested_value, reason, reviewer,
			status, created_at, updated_at
		FROM record_flags
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	return scanFlagRows(rows)
}

func scanFlagRows(rows *sql.Rows) ([]*Flag, error) {
	var result []*Flag
	for rows.Next() {
		f := &Flag{}
		var status string

		err := rows.Scan(
			&f.ID, &f.PMID, &f.Drug, &f.Field,
			&f.ReportedValue, &f.SuggestedValue, &f.Reason, &f.Reviewer,
			&status, &f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f.Status = Status(status)
		result = append(result, f)
	}

	return result, rows.Err()
}

// Count returns the total number of flags.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM record_flags").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count flags: %w", err)
	}
	return count, nil
}

// Resolve marks a flag as resolved.
func (s *PostgresStore) Resolve(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE record_flags SET status = $1, updated_at = $2 WHERE id = $3",
		string(StatusResolved), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve flag: %w", err)
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
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM record_flags WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete flag: %w", err)
	}
	return nil
}

// maxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON exports all flags to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, pgMaxExportLimit, 0)
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
