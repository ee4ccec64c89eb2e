// Package datasource implements the uniform data-source contract: identity,
// availability, schema extraction, and request execution, with one adapter
// per source kind (SQL, MongoDB, Elasticsearch, Redis, MCP).
package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/insightloop/glean/pkg/models"
)

// Adapter is the uniform contract over one connected data source. Adapter
// instances are owned by the registry; callers borrow a reference for the
// duration of a single request.
type Adapter interface {
	// ID returns the connection id as a string.
	ID() string

	// Name returns the user-assigned connection name.
	Name() string

	// Kind returns the source kind.
	Kind() models.SourceKind

	// IsAvailable probes the source with a lightweight check. Must not panic
	// and reports false instead of returning an error.
	IsAvailable(ctx context.Context) bool

	// ExtractSchema produces the normalized schema for the source.
	ExtractSchema(ctx context.Context) (*models.SourceSchema, error)

	// Execute runs one data request. Kind-incompatible requests fail with
	// ErrInvalidRequestKind; per-request failures are reported in the
	// ExecutionResult, not as an error, unless the adapter itself is broken.
	Execute(ctx context.Context, req *models.DataRequest) models.ExecutionResult

	// Close releases pooled handles. Called only on registry eviction.
	Close() error
}

// ErrInvalidRequestKind is returned (inside ExecutionResult.ErrorMessage)
// when a request is routed to an adapter of the wrong kind.
var ErrInvalidRequestKind = errors.New("INVALID_REQUEST_KIND")

// SchemaExtractionError wraps a per-source schema failure so the orchestrator
// can skip the source and continue.
type SchemaExtractionError struct {
	SourceID int64
	Kind     models.SourceKind
	Err      error
}

func (e *SchemaExtractionError) Error() string {
	return fmt.Sprintf("schema extraction failed for source %d (%s): %v", e.SourceID, e.Kind, e.Err)
}

func (e *SchemaExtractionError) Unwrap() error { return e.Err }

// invalidKind builds the ExecutionResult for a kind-mismatched request.
func invalidKind(adapterKind models.SourceKind, reqKind models.RequestKind) models.ExecutionResult {
	return models.FailedExecution(fmt.Sprintf("%s: %s adapter cannot execute %s requests",
		ErrInvalidRequestKind, adapterKind, reqKind))
}

// SampleRowLimit is the number of sample rows collected per table for AI
// grounding.
const SampleRowLimit = 3
