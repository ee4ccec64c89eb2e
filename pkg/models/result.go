package models

import "time"

// ExecutionResult is the adapter-level outcome of one data request.
// Count-style responses carry a single {"count": N} row.
type ExecutionResult struct {
	Success      bool             `json:"success"`
	Rows         []map[string]any `json:"rows"`
	Columns      []string         `json:"columns"`
	RowCount     int              `json:"row_count"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// FailedExecution builds an ExecutionResult carrying only an error message.
func FailedExecution(msg string) ExecutionResult {
	return ExecutionResult{Success: false, ErrorMessage: msg}
}

// QueryResult is the user-facing wrapper around an ExecutionResult,
// annotated with the connection it ran against and the plan's explanation.
type QueryResult struct {
	ExecutionResult
	ConnectionID   int64  `json:"connection_id"`
	ConnectionName string `json:"connection_name,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	Query          string `json:"query,omitempty"`
}

// ErrorInfo is the machine-readable error block of a failed AnalyzeResponse.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// AnalyzeResponse is the final response delivered on the response (or error)
// channel once a conversation turn completes.
type AnalyzeResponse struct {
	Success                bool            `json:"success"`
	ConversationID         int64           `json:"conversation_id"`
	Summary                string          `json:"summary,omitempty"`
	QueryResults           []QueryResult   `json:"query_results,omitempty"`
	SuggestedVisualization *AnalysisReport `json:"suggested_visualization,omitempty"`
	Error                  *ErrorInfo      `json:"error,omitempty"`
	Timestamp              time.Time       `json:"timestamp"`
}

// AnalysisReport is the parsed JSON the analysis prompt asks the model for.
type AnalysisReport struct {
	Title            string            `json:"title"`
	Analysis         string            `json:"analysis"`
	KeyMetrics       []KeyMetric       `json:"keyMetrics"`
	ChartSuggestions []ChartSuggestion `json:"chartSuggestions"`
}

// KeyMetric is one headline figure surfaced by the analysis.
type KeyMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChartSuggestion describes one chart the dashboard phase may render.
type ChartSuggestion struct {
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	XColumn string   `json:"xColumn,omitempty"`
	YColumn string   `json:"yColumn,omitempty"`
	Columns []string `json:"columns,omitempty"`
}
