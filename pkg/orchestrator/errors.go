package orchestrator

import "github.com/insightloop/glean/pkg/models"

// Final-response error codes. Per-request execution failures never use
// these; they travel inside QueryResult.ErrorMessage instead.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeNoConnections         = "NO_CONNECTIONS"
	CodeSchemaError           = "SCHEMA_ERROR"
	CodeQueryGenerationFailed = "QUERY_GENERATION_FAILED"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeInvalidRequestKind    = "INVALID_REQUEST_KIND"
	CodeQueryTimeout          = "QUERY_TIMEOUT"
	CodeConnectionError       = "CONNECTION_ERROR"
	CodeUnknownSourceKind     = "UNKNOWN_SOURCE_KIND"
)

// suggestions gives each final error an actionable next step for the user.
var suggestions = map[string]string{
	CodeValidationError:       "Provide a non-empty message and at least one connection ID.",
	CodeNoConnections:         "Verify the supplied connection IDs belong to your account.",
	CodeSchemaError:           "Check that the data sources are reachable and the credentials are valid.",
	CodeQueryGenerationFailed: "Rephrase the question or narrow it to data the connected sources hold.",
	CodeInternalError:         "Try again; if the problem persists, contact support.",
	CodeConnectionError:       "Check the data source's host, port and credentials.",
	CodeUnknownSourceKind:     "The connection's type is not supported by this engine.",
}

func errorInfo(code, message string) *models.ErrorInfo {
	return &models.ErrorInfo{
		Code:       code,
		Message:    message,
		Suggestion: suggestions[code],
	}
}
