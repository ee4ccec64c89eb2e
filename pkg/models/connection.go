// Package models defines the shared data model of the glean engine:
// connection records, source schemas, data requests, execution results,
// and the inbound/outbound message contract.
package models

import "fmt"

// SourceKind identifies the kind of a user data source.
type SourceKind string

const (
	KindPostgreSQL    SourceKind = "POSTGRESQL"
	KindMySQL         SourceKind = "MYSQL"
	KindSQLite        SourceKind = "SQLITE"
	KindSupabase      SourceKind = "SUPABASE"
	KindStarRocks     SourceKind = "STARROCKS"
	KindClickHouse    SourceKind = "CLICKHOUSE"
	KindSnowflake     SourceKind = "SNOWFLAKE"
	KindMongoDB       SourceKind = "MONGODB"
	KindRedis         SourceKind = "REDIS"
	KindElasticsearch SourceKind = "ELASTICSEARCH"
	KindBigQuery      SourceKind = "BIGQUERY"
	KindMCP           SourceKind = "MCP"
)

// ParseSourceKind maps the connection record's type discriminator to a
// SourceKind. Unknown values are a fatal registry error.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case KindPostgreSQL, KindMySQL, KindSQLite, KindSupabase, KindStarRocks,
		KindClickHouse, KindSnowflake, KindMongoDB, KindRedis,
		KindElasticsearch, KindBigQuery, KindMCP:
		return SourceKind(s), nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}

// IsRelational reports whether the kind executes SQL over database/sql.
func (k SourceKind) IsRelational() bool {
	switch k {
	case KindPostgreSQL, KindMySQL, KindSQLite, KindSupabase, KindStarRocks,
		KindClickHouse, KindSnowflake, KindBigQuery:
		return true
	}
	return false
}

// Connection is a user-owned data source record resolved from the repository.
// The engine never persists it; credential material is read-only here.
type Connection struct {
	ID       int64      `json:"id" db:"id"`
	OwnerID  int64      `json:"owner_id" db:"owner_id"`
	Name     string     `json:"name" db:"name"`
	Kind     SourceKind `json:"type" db:"type"`
	Host     string     `json:"host" db:"host"`
	Port     int        `json:"port" db:"port"`
	Database string     `json:"database" db:"database_name"`
	Username string     `json:"username" db:"username"`
	Password string     `json:"-" db:"password"`

	// Detail carries kind-specific settings: SQLite file path, MongoDB auth
	// source, Elasticsearch scheme, MCP transport and bearer token.
	Detail map[string]any `json:"detail,omitempty" db:"-"`
}

// DetailString returns a string detail value or the fallback.
func (c *Connection) DetailString(key, fallback string) string {
	if c.Detail == nil {
		return fallback
	}
	if v, ok := c.Detail[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
