// Package feedback provides storage for data-quality flags raised against
// extracted study records. Reviewers flag suspect values (the extraction is
// LLM-based and occasionally wrong); flags live beside the dataset and are
// never written back into the source documents.
package feedback

import (
	"context"
	"io"
	"time"
)

// Status represents the review state of a flag.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Flag represents one reviewer's dispute of an extracted value.
type Flag struct {
	ID             int64     `json:"id,omitempty"`
	PMID           string    `json:"pmid"`                      // Study identifier
	Drug           string    `json:"drug"`                      // Drug list the record belongs to
	Field          string    `json:"field"`                     // Metric path being disputed
	ReportedValue  string    `json:"reported_value,omitempty"`  // Value as extracted
	SuggestedValue string    `json:"suggested_value,omitempty"` // Reviewer's correction
	Reason         string    `json:"reason,omitempty"`          // Why the value is suspect
	Reviewer       string    `json:"reviewer,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store defines the interface for flag storage operations.
type Store interface {
	// Save stores or updates a flag.
	// If a flag for the same pmid+drug+field exists, it will be updated.
	Save(ctx context.Context, flag *Flag) error

	// Get retrieves the flag for a specific record field, nil when absent.
	Get(ctx context.Context, pmid, drug, field string) (*Flag, error)

	// ListByPMID returns all flags raised against one study.
	ListByPMID(ctx context.Context, pmid string) ([]*Flag, error)

	// List returns all flags with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Flag, error)

	// Count returns the total number of flags.
	Count(ctx context.Context) (int64, error)

	// Resolve marks a flag as resolved.
	Resolve(ctx context.Context, id int64) error

	// Delete removes a flag by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all flags to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports flags from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FlagExport represents the JSON export format.
type FlagExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Flags      []*Flag   `json:"flags"`
}
