package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/version"
)

const (
	// MCPInitTimeout bounds the initial connect + handshake.
	MCPInitTimeout = 5 * time.Second

	// MCPOperationTimeout bounds tool calls and resource reads.
	MCPOperationTimeout = 60 * time.Second
)

// MCPAdapter exposes a remote MCP server as a data source: its tool and
// resource list is the schema, tool calls and resource reads are execution.
// The session is created lazily on first use and serialised by initMu.
type MCPAdapter struct {
	conn *models.Connection

	initMu  sync.Mutex
	mu      sync.RWMutex
	session *mcpsdk.ClientSession
}

// NewMCPAdapter builds the adapter without connecting; the session is
// established on first use so a down server does not block registry creation.
func NewMCPAdapter(conn *models.Connection) *MCPAdapter {
	return &MCPAdapter{conn: conn}
}

func (a *MCPAdapter) ID() string              { return strconv.FormatInt(a.conn.ID, 10) }
func (a *MCPAdapter) Name() string            { return a.conn.Name }
func (a *MCPAdapter) Kind() models.SourceKind { return models.KindMCP }

// Close shuts the session down if one was established.
func (a *MCPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		err := a.session.Close()
		a.session = nil
		return err
	}
	return nil
}

// serverURL resolves the MCP endpoint from the connection record.
func (a *MCPAdapter) serverURL() string {
	if u := a.conn.DetailString("url", ""); u != "" {
		return u
	}
	scheme := a.conn.DetailString("scheme", "http")
	return fmt.Sprintf("%s://%s:%d", scheme, a.conn.Host, a.conn.Port)
}

// ensureSession connects on first use. Per-adapter initMu prevents
// concurrent handshakes against the same server.
func (a *MCPAdapter) ensureSession(ctx context.Context) (*mcpsdk.ClientSession, error) {
	a.mu.RLock()
	if s := a.session; s != nil {
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	a.initMu.Lock()
	defer a.initMu.Unlock()

	a.mu.RLock()
	if s := a.session; s != nil {
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	transport := &mcpsdk.StreamableClientTransport{
		Endpoint:   a.serverURL(),
		HTTPClient: a.httpClient(),
	}

	initCtx, cancel := context.WithTimeout(ctx, MCPInitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.Version,
	}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %q: %w", a.conn.Name, err)
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return session, nil
}

// httpClient builds the transport client, attaching the connection's bearer
// token when credential material is present.
func (a *MCPAdapter) httpClient() *http.Client {
	client := &http.Client{Timeout: MCPOperationTimeout}
	if a.conn.Password != "" {
		client.Transport = &bearerTokenTransport{
			base:  http.DefaultTransport,
			token: a.conn.Password,
		}
	}
	return client
}

// bearerTokenTransport wraps an http.RoundTripper to add Authorization headers.
type bearerTokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// IsAvailable reports whether a session can be (or already is) established.
func (a *MCPAdapter) IsAvailable(ctx context.Context) bool {
	_, err := a.ensureSession(ctx)
	return err == nil
}

// ExtractSchema lists the server's tools and resources.
func (a *MCPAdapter) ExtractSchema(ctx context.Context) (*models.SourceSchema, error) {
	session, err := a.ensureSession(ctx)
	if err != nil {
		return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: models.KindMCP, Err: err}
	}

	opCtx, cancel := context.WithTimeout(ctx, MCPOperationTimeout)
	defer cancel()

	schema := &models.SourceSchema{
		SourceID:   a.conn.ID,
		SourceName: a.conn.Name,
		SourceKind: models.KindMCP,
	}

	toolsResult, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: models.KindMCP, Err: err}
	}
	for _, tool := range toolsResult.Tools {
		entry := models.MCPTool{Name: tool.Name, Description: tool.Description}
		if tool.InputSchema != nil {
			if data, err := json.Marshal(tool.InputSchema); err == nil {
				entry.InputSchema = string(data)
			}
		}
		schema.Tools = append(schema.Tools, entry)
	}

	// A server without resources is common; list failures are non-fatal.
	if resResult, err := session.ListResources(opCtx, nil); err == nil {
		for _, res := range resResult.Resources {
			schema.Resources = append(schema.Resources, models.MCPResource{
				URI:         res.URI,
				Name:        res.Name,
				Description: res.Description,
				MimeType:    res.MIMEType,
			})
		}
	}

	return schema, nil
}

// Execute dispatches tool calls and resource reads.
func (a *MCPAdapter) Execute(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	switch req.Kind {
	case models.RequestMCPToolCall:
		return a.callTool(ctx, req)
	case models.RequestMCPResourceRead:
		return a.readResource(ctx, req)
	default:
		return invalidKind(models.KindMCP, req.Kind)
	}
}

func (a *MCPAdapter) callTool(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	if req.ToolName == "" {
		return models.FailedExecution("mcp tool call missing toolName")
	}

	session, err := a.ensureSession(ctx)
	if err != nil {
		return models.FailedExecution(SanitizeError(err.Error()))
	}

	opCtx, cancel := context.WithTimeout(ctx, MCPOperationTimeout)
	defer cancel()

	result, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{
		Name:      req.ToolName,
		Arguments: req.Arguments,
	})
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("tool call %s failed: %v", req.ToolName, err)))
	}
	if result.IsError {
		return models.FailedExecution(fmt.Sprintf("tool %s returned an error: %s",
			req.ToolName, contentText(result.Content)))
	}

	// Tool results unwrap into a single row.
	row := map[string]any{"result": contentText(result.Content)}
	if result.StructuredContent != nil {
		row["result"] = result.StructuredContent
	}
	return models.ExecutionResult{
		Success:  true,
		Rows:     []map[string]any{row},
		Columns:  []string{"result"},
		RowCount: 1,
	}
}

func (a *MCPAdapter) readResource(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	if req.URI == "" {
		return models.FailedExecution("mcp resource read missing uri")
	}

	session, err := a.ensureSession(ctx)
	if err != nil {
		return models.FailedExecution(SanitizeError(err.Error()))
	}

	opCtx, cancel := context.WithTimeout(ctx, MCPOperationTimeout)
	defer cancel()

	result, err := session.ReadResource(opCtx, &mcpsdk.ReadResourceParams{URI: req.URI})
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("resource read %s failed: %v", req.URI, err)))
	}

	var rows []map[string]any
	for _, content := range result.Contents {
		row := map[string]any{"uri": content.URI}
		if content.Text != "" {
			row["content"] = content.Text
		} else if len(content.Blob) > 0 {
			row["content"] = "[binary data]"
		}
		rows = append(rows, row)
	}

	return models.ExecutionResult{
		Success:  true,
		Rows:     rows,
		Columns:  []string{"uri", "content"},
		RowCount: len(rows),
	}
}

// contentText flattens MCP content blocks into one string.
func contentText(blocks []mcpsdk.Content) string {
	var parts []string
	for _, block := range blocks {
		if text, ok := block.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
