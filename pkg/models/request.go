package models

import "encoding/json"

// RequestKind discriminates the DataRequest variants.
type RequestKind string

const (
	RequestSQLQuery        RequestKind = "SQL_QUERY"
	RequestMongoQuery      RequestKind = "MONGO_QUERY"
	RequestESQuery         RequestKind = "ES_QUERY"
	RequestMCPToolCall     RequestKind = "MCP_TOOL_CALL"
	RequestMCPResourceRead RequestKind = "MCP_RESOURCE_READ"
)

// MongoOperation is the subset of MongoDB operations the executor dispatches.
type MongoOperation string

const (
	MongoFind      MongoOperation = "find"
	MongoCount     MongoOperation = "count"
	MongoAggregate MongoOperation = "aggregate"
)

// DataRequest is one step of an AI-generated query plan. It is a tagged
// variant: Kind selects which payload fields are meaningful. Keeping it a
// single struct keeps JSON decoding of LLM output direct; the executor
// switches exhaustively on Kind.
type DataRequest struct {
	Kind        RequestKind `json:"type"`
	SourceID    string      `json:"sourceId,omitempty"`
	Step        int         `json:"step,omitempty"`
	DependsOn   int         `json:"dependsOn,omitempty"`
	OutputAs    string      `json:"outputAs,omitempty"`
	OutputField string      `json:"outputField,omitempty"`
	Description string      `json:"explanation,omitempty"`

	// SQL_QUERY
	SQL string `json:"sql,omitempty"`

	// MONGO_QUERY
	Collection string          `json:"collection,omitempty"`
	Operation  MongoOperation  `json:"operation,omitempty"`
	Filter     json.RawMessage `json:"filter,omitempty"`
	Limit      int             `json:"limit,omitempty"`

	// ES_QUERY
	Index string          `json:"index,omitempty"`
	Query json.RawMessage `json:"query,omitempty"`
	Size  int             `json:"size,omitempty"`

	// MCP_TOOL_CALL
	ToolName  string         `json:"toolName,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`

	// MCP_RESOURCE_READ
	URI string `json:"uri,omitempty"`
}
