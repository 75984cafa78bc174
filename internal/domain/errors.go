package domain

import (
	"fmt"
	"strconv"
)

// Error codes for different failure scenarios
const (
	ErrMalformedInput = "MALFORMED_INPUT"
	ErrFetchFailed    = "FETCH_FAILED"
	ErrMetricUnknown  = "METRIC_UNKNOWN"
	ErrStorage        = "STORAGE_ERROR"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// MalformedInputError reports that a source document's top-level shape is
// not a mapping from drug name to a sequence of record objects. Individual
// malformed records inside a well-shaped document are skipped, not raised.
type MalformedInputError struct {
	Reason string
	Detail string
}

// Error implements the error interface
func (e *MalformedInputError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrMalformedInput, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedInput, e.Reason)
}

// NewMalformedInputError creates a new MalformedInputError
func NewMalformedInputError(reason, detail string) *MalformedInputError {
	return &MalformedInputError{Reason: reason, Detail: detail}
}

// MetricError reports a request for a metric path the record model cannot resolve
type MetricError struct {
	Path string
}

// Error implements the error interface
func (e *MetricError) Error() string {
	return fmt.Sprintf("%s: no such metric path %q", ErrMetricUnknown, e.Path)
}

// jsonFloat renders a float the way encoding/json does, without NaN leakage
func jsonFloat(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'g', -1, 64)
}
