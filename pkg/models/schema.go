package models

// SourceSchema is the normalized schema extracted from one data source.
// Exactly one of the per-kind sections is populated, matching Kind.
type SourceSchema struct {
	SourceID   int64      `json:"source_id"`
	SourceName string     `json:"source_name"`
	SourceKind SourceKind `json:"source_kind"`

	// Relational
	Tables []Table `json:"tables,omitempty"`

	// Document
	Collections []Collection `json:"collections,omitempty"`

	// Search index
	Indices []SearchIndex `json:"indices,omitempty"`

	// Keyspace (Redis)
	KeyGroups []KeyGroup `json:"key_groups,omitempty"`

	// Tool/resource (MCP)
	Tools     []MCPTool     `json:"tools,omitempty"`
	Resources []MCPResource `json:"resources,omitempty"`
}

// Table describes one relational table with ordered columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`

	// SampleRows are collected for AI grounding. Sensitive columns are
	// redacted at extraction time, before any prompt sees them.
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// Column is one relational column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// Collection describes one document collection.
type Collection struct {
	Name           string  `json:"name"`
	SampleDocument string  `json:"sample_document,omitempty"`
	Indexes        []string `json:"indexes,omitempty"`
	ApproxCount    int64   `json:"approx_count"`
	Fields         []Field `json:"fields,omitempty"`
}

// Field is a name/type pair inferred from a sample document or a mapping.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SearchIndex describes one search index with mapped field types.
type SearchIndex struct {
	Name        string  `json:"name"`
	Fields      []Field `json:"fields,omitempty"`
	ApproxCount int64   `json:"approx_count"`
}

// KeyGroup summarises a Redis key prefix: pattern, value type, sampled size.
type KeyGroup struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
	Count   int64  `json:"count"`
}

// MCPTool is one callable tool advertised by an MCP server.
type MCPTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema string `json:"input_schema,omitempty"`
}

// MCPResource is one readable resource advertised by an MCP server.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}
