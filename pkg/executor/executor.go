// Package executor runs AI-generated query plans against registered data
// sources: parallel mode for independent requests, chained mode for
// step-ordered plans passing $variables between steps.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/insightloop/glean/pkg/datasource"
	"github.com/insightloop/glean/pkg/models"
)

// AdapterResolver yields the adapter for an owned connection. Satisfied by
// *registry.Registry.
type AdapterResolver interface {
	GetDataSourceByConnectionID(ctx context.Context, connectionID, ownerID int64) (datasource.Adapter, error)
}

// Executor runs validated plans. Per-request failures become errored
// QueryResults; the plan always runs to completion.
type Executor struct {
	resolver AdapterResolver
}

// New creates an Executor over the adapter resolver.
func New(resolver AdapterResolver) *Executor {
	return &Executor{resolver: resolver}
}

// Execute runs the plan and returns one QueryResult per request, in plan
// order. The caller is expected to have run ValidatePlan first.
func (e *Executor) Execute(ctx context.Context, ownerID int64, connectionIDs []int64, requests []models.DataRequest) []models.QueryResult {
	if IsChained(requests) {
		return e.executeChained(ctx, ownerID, connectionIDs, requests)
	}
	return e.executeParallel(ctx, ownerID, connectionIDs, requests)
}

// executeParallel groups requests by resolved connection and runs each
// group sequentially in its own goroutine. Results land at their original
// plan positions.
func (e *Executor) executeParallel(ctx context.Context, ownerID int64, connectionIDs []int64, requests []models.DataRequest) []models.QueryResult {
	results := make([]models.QueryResult, len(requests))

	groups := make(map[int64][]int)
	order := make([]int64, 0, len(connectionIDs))
	for i := range requests {
		connID, err := resolveConnectionID(&requests[i], connectionIDs)
		if err != nil {
			results[i] = failedResult(&requests[i], 0, err.Error())
			continue
		}
		if _, seen := groups[connID]; !seen {
			order = append(order, connID)
		}
		groups[connID] = append(groups[connID], i)
	}

	var wg sync.WaitGroup
	for _, connID := range order {
		indices := groups[connID]
		wg.Add(1)
		go func(connID int64, indices []int) {
			defer wg.Done()
			for _, i := range indices {
				results[i] = e.executeOne(ctx, ownerID, connID, &requests[i])
			}
		}(connID, indices)
	}
	wg.Wait()

	return results
}

// executeChained runs requests in step order, carrying extracted output
// values forward as $variables.
func (e *Executor) executeChained(ctx context.Context, ownerID int64, connectionIDs []int64, requests []models.DataRequest) []models.QueryResult {
	ordered := make([]models.DataRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	variables := make(map[string]string)
	results := make([]models.QueryResult, 0, len(ordered))

	for i := range ordered {
		req := &ordered[i]

		if req.DependsOn != 0 && len(variables) > 0 {
			substituteVariables(req, variables)
		}

		connID, err := resolveConnectionID(req, connectionIDs)
		if err != nil {
			results = append(results, failedResult(req, 0, err.Error()))
			continue
		}

		result := e.executeOne(ctx, ownerID, connID, req)
		results = append(results, result)

		if req.OutputAs != "" && req.OutputField != "" && result.Success && result.RowCount > 0 {
			if value, ok := extractOutput(&result.ExecutionResult, req.OutputField); ok {
				variables[req.OutputAs] = value
			} else {
				slog.Warn("Output field not found in result",
					"step", req.Step, "output_field", req.OutputField)
			}
		}
	}

	return results
}

// substituteVariables rewrites the request's query text in place. SQL and
// Mongo filters carry substitutable text; the other kinds pass through.
func substituteVariables(req *models.DataRequest, variables map[string]string) {
	switch req.Kind {
	case models.RequestSQLQuery:
		req.SQL = ReplaceVariables(req.SQL, variables)
	case models.RequestMongoQuery:
		if len(req.Filter) > 0 {
			req.Filter = []byte(ReplaceVariables(string(req.Filter), variables))
		}
	}
}

func (e *Executor) executeOne(ctx context.Context, ownerID, connectionID int64, req *models.DataRequest) models.QueryResult {
	adapter, err := e.resolver.GetDataSourceByConnectionID(ctx, connectionID, ownerID)
	if err != nil {
		return failedResult(req, connectionID, datasource.SanitizeError(err.Error()))
	}

	start := time.Now()
	execution := adapter.Execute(ctx, req)
	execution.ElapsedMs = time.Since(start).Milliseconds()

	return models.QueryResult{
		ExecutionResult: execution,
		ConnectionID:    connectionID,
		ConnectionName:  adapter.Name(),
		Explanation:     req.Description,
		Query:           queryText(req),
	}
}

// resolveConnectionID maps a request to a caller-supplied connection. A
// sourceId must parse as an integer and appear in the supplied set. Without
// one, a single-connection call falls back to that connection; with several
// connections the request is refused rather than guessed.
func resolveConnectionID(req *models.DataRequest, connectionIDs []int64) (int64, error) {
	if req.SourceID != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(req.SourceID), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("sourceId %q is not a connection id", req.SourceID)
		}
		for _, candidate := range connectionIDs {
			if candidate == id {
				return id, nil
			}
		}
		return 0, fmt.Errorf("sourceId %d is not among the supplied connections", id)
	}

	switch len(connectionIDs) {
	case 0:
		return 0, fmt.Errorf("no connections supplied")
	case 1:
		return connectionIDs[0], nil
	default:
		return 0, fmt.Errorf("request names no sourceId and %d connections were supplied", len(connectionIDs))
	}
}

// extractOutput pulls the output value for chaining: exact column match
// first, case-insensitive second. Multi-row results join values with ", "
// so substitution can build IN (...) lists.
func extractOutput(result *models.ExecutionResult, field string) (string, bool) {
	column := field
	if _, ok := result.Rows[0][column]; !ok {
		column = ""
		for name := range result.Rows[0] {
			if strings.EqualFold(name, field) {
				column = name
				break
			}
		}
		if column == "" {
			return "", false
		}
	}

	values := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		values = append(values, cast.ToString(row[column]))
	}
	return strings.Join(values, ", "), true
}

func failedResult(req *models.DataRequest, connectionID int64, msg string) models.QueryResult {
	return models.QueryResult{
		ExecutionResult: models.FailedExecution(msg),
		ConnectionID:    connectionID,
		Explanation:     req.Description,
		Query:           queryText(req),
	}
}

// queryText renders the human-readable form of what ran, for summaries and
// the final response.
func queryText(req *models.DataRequest) string {
	switch req.Kind {
	case models.RequestSQLQuery:
		return req.SQL
	case models.RequestMongoQuery:
		filter := strings.TrimSpace(string(req.Filter))
		if filter == "" {
			filter = "{}"
		}
		return fmt.Sprintf("db.%s.%s(%s)", req.Collection, req.Operation, filter)
	case models.RequestESQuery:
		return fmt.Sprintf("%s/_search %s", req.Index, strings.TrimSpace(string(req.Query)))
	case models.RequestMCPToolCall:
		return "tool:" + req.ToolName
	case models.RequestMCPResourceRead:
		return "resource:" + req.URI
	default:
		return ""
	}
}
