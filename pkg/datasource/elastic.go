package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/insightloop/glean/pkg/models"
)

// DefaultESSize caps search hits when the plan sets no size.
const DefaultESSize = 100

// ESAdapter executes search requests against one Elasticsearch cluster.
// The engine passes Query-DSL JSON through verbatim, so the adapter is a
// thin REST client rather than a typed SDK wrapper.
type ESAdapter struct {
	conn    *models.Connection
	baseURL string
	client  *http.Client
}

// NewESAdapter builds the adapter; no connection is opened until first use.
func NewESAdapter(conn *models.Connection) *ESAdapter {
	scheme := conn.DetailString("scheme", "http")
	return &ESAdapter{
		conn:    conn,
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, conn.Host, conn.Port),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *ESAdapter) ID() string              { return strconv.FormatInt(a.conn.ID, 10) }
func (a *ESAdapter) Name() string            { return a.conn.Name }
func (a *ESAdapter) Kind() models.SourceKind { return models.KindElasticsearch }
func (a *ESAdapter) Close() error            { a.client.CloseIdleConnections(); return nil }

func (a *ESAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.conn.Username != "" {
		req.SetBasicAuth(a.conn.Username, a.conn.Password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("elasticsearch returned %d: %s", resp.StatusCode, truncate(string(data), 500))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsAvailable probes the cluster root. Never panics.
func (a *ESAdapter) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.do(probeCtx, http.MethodGet, "/", nil, nil) == nil
}

// ExtractSchema lists non-dotted indices with mapped field types and counts.
func (a *ESAdapter) ExtractSchema(ctx context.Context) (*models.SourceSchema, error) {
	var mappings map[string]struct {
		Mappings struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"mappings"`
	}
	if err := a.do(ctx, http.MethodGet, "/_mapping", nil, &mappings); err != nil {
		return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: models.KindElasticsearch, Err: err}
	}

	schema := &models.SourceSchema{
		SourceID:   a.conn.ID,
		SourceName: a.conn.Name,
		SourceKind: models.KindElasticsearch,
	}

	names := make([]string, 0, len(mappings))
	for name := range mappings {
		// System indices start with a dot.
		if !strings.HasPrefix(name, ".") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		index := models.SearchIndex{Name: name}
		for field, raw := range mappings[name].Mappings.Properties {
			index.Fields = append(index.Fields, models.Field{
				Name: field,
				Type: esFieldType(raw),
			})
		}
		sort.Slice(index.Fields, func(i, j int) bool {
			return index.Fields[i].Name < index.Fields[j].Name
		})

		var countResp struct {
			Count int64 `json:"count"`
		}
		if err := a.do(ctx, http.MethodGet, "/"+name+"/_count", nil, &countResp); err == nil {
			index.ApproxCount = countResp.Count
		}

		schema.Indices = append(schema.Indices, index)
	}

	return schema, nil
}

// esFieldType maps an ES property definition to a compact type token.
func esFieldType(raw json.RawMessage) string {
	var prop struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil {
		return "unknown"
	}
	if prop.Type == "" {
		if len(prop.Properties) > 0 {
			return "object"
		}
		return "unknown"
	}
	switch prop.Type {
	case "text", "keyword", "long", "integer", "double", "boolean", "date",
		"object", "nested", "geo_point":
		return prop.Type
	case "float", "half_float", "scaled_float":
		return "double"
	case "short", "byte":
		return "integer"
	default:
		return "unknown"
	}
}

// Execute runs a search. A non-empty query passes through as Query-DSL;
// an empty one becomes match_all.
func (a *ESAdapter) Execute(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	if req.Kind != models.RequestESQuery {
		return invalidKind(models.KindElasticsearch, req.Kind)
	}
	if req.Index == "" {
		return models.FailedExecution("es query missing index")
	}

	size := req.Size
	if size <= 0 {
		size = DefaultESSize
	}

	body := map[string]any{"size": size}
	if len(req.Query) > 0 && string(req.Query) != "null" && string(req.Query) != "{}" {
		var dsl any
		if err := json.Unmarshal(req.Query, &dsl); err != nil {
			return models.FailedExecution(fmt.Sprintf("invalid query DSL: %v", err))
		}
		body["query"] = dsl
	} else {
		body["query"] = map[string]any{"match_all": map[string]any{}}
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Index  string         `json:"_index"`
				Score  *float64       `json:"_score"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := a.do(ctx, http.MethodPost, "/"+req.Index+"/_search", body, &searchResp); err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("search failed: %v", err)))
	}

	var rows []map[string]any
	columnSet := make(map[string]bool)
	columns := []string{"_id", "_index", "_score"}
	for _, c := range columns {
		columnSet[c] = true
	}

	for _, hit := range searchResp.Hits.Hits {
		row := map[string]any{
			"_id":    hit.ID,
			"_index": hit.Index,
		}
		if hit.Score != nil {
			row["_score"] = *hit.Score
		}
		for k, v := range hit.Source {
			row[k] = v
			if !columnSet[k] {
				columnSet[k] = true
				columns = append(columns, k)
			}
		}
		rows = append(rows, row)
	}

	return models.ExecutionResult{
		Success:  true,
		Rows:     rows,
		Columns:  columns,
		RowCount: len(rows),
	}
}
