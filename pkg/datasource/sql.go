package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/summary"
)

// StatementTimeout bounds every SQL statement issued by the adapter.
const StatementTimeout = 30 * time.Second

// SQLAdapter executes read-only SQL against one relational connection.
// It owns a pooled database handle; execution wraps every statement in a
// read-only transaction that is always rolled back, so no query ever commits.
type SQLAdapter struct {
	conn    *models.Connection
	db      *sql.DB
	dialect dialect
}

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectMySQL    dialect = "mysql"
	dialectSQLite   dialect = "sqlite"
)

// NewSQLAdapter opens a pooled handle for a relational connection.
// StarRocks and ClickHouse speak the MySQL wire protocol and share the MySQL
// driver; Snowflake and BigQuery have no driver wired and fail here.
func NewSQLAdapter(conn *models.Connection) (*SQLAdapter, error) {
	driver, dia, dsn, err := dsnFor(conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s handle: %w", conn.Kind, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLAdapter{conn: conn, db: db, dialect: dia}, nil
}

func dsnFor(conn *models.Connection) (driver string, dia dialect, dsn string, err error) {
	switch conn.Kind {
	case models.KindPostgreSQL, models.KindSupabase:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(conn.Username, conn.Password),
			Host:   fmt.Sprintf("%s:%d", conn.Host, conn.Port),
			Path:   "/" + conn.Database,
		}
		q := u.Query()
		q.Set("sslmode", conn.DetailString("sslmode", "prefer"))
		u.RawQuery = q.Encode()
		return "pgx", dialectPostgres, u.String(), nil

	case models.KindMySQL, models.KindStarRocks, models.KindClickHouse:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return "mysql", dialectMySQL, dsn, nil

	case models.KindSQLite:
		path := conn.DetailString("file_path", conn.Database)
		if path == "" {
			return "", "", "", fmt.Errorf("sqlite connection %d has no file path", conn.ID)
		}
		return "sqlite3", dialectSQLite, "file:" + path + "?mode=ro", nil

	default:
		return "", "", "", fmt.Errorf("no SQL driver wired for kind %s", conn.Kind)
	}
}

func (a *SQLAdapter) ID() string              { return strconv.FormatInt(a.conn.ID, 10) }
func (a *SQLAdapter) Name() string            { return a.conn.Name }
func (a *SQLAdapter) Kind() models.SourceKind { return a.conn.Kind }
func (a *SQLAdapter) Close() error            { return a.db.Close() }

// IsAvailable probes with SELECT 1. Never panics.
func (a *SQLAdapter) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var one int
	return a.db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one) == nil
}

// Execute validates the SQL, runs it read-only, and materialises the rows.
// The transaction is rolled back even on success.
func (a *SQLAdapter) Execute(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	if req.Kind != models.RequestSQLQuery {
		return invalidKind(a.conn.Kind, req.Kind)
	}

	if v := ValidateSQL(req.SQL); !v.Valid {
		return models.FailedExecution(v.Reason)
	}

	execCtx, cancel := context.WithTimeout(ctx, StatementTimeout)
	defer cancel()

	tx, err := a.beginReadOnly(execCtx)
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("failed to open connection: %v", err)))
	}
	// Rollback unconditionally: the read-only discipline is that no query
	// ever commits, success included.
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(execCtx, req.SQL)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return models.FailedExecution(fmt.Sprintf("query timed out after %s", StatementTimeout))
		}
		return models.FailedExecution(SanitizeError(fmt.Sprintf("query failed: %v", err)))
	}
	defer rows.Close()

	columns, materialized, err := materializeRows(rows)
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("failed to read rows: %v", err)))
	}

	return models.ExecutionResult{
		Success:  true,
		Rows:     materialized,
		Columns:  columns,
		RowCount: len(materialized),
	}
}

func (a *SQLAdapter) beginReadOnly(ctx context.Context) (*sql.Tx, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err == nil {
		return tx, nil
	}
	// Some drivers (sqlite) reject read-only transactions; the sqlite handle
	// is already opened mode=ro, so a plain transaction keeps the invariant.
	return a.db.BeginTx(ctx, nil)
}

// materializeRows scans every row into a []map with normalised values:
// timestamps become ISO-8601 strings, non-text byte arrays become the
// literal "[binary data]" token.
func materializeRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return "[binary data]"
	default:
		return v
	}
}

// ExtractSchema enumerates non-system tables with columns, primary keys,
// and redacted sample rows.
func (a *SQLAdapter) ExtractSchema(ctx context.Context) (*models.SourceSchema, error) {
	schemaCtx, cancel := context.WithTimeout(ctx, StatementTimeout)
	defer cancel()

	tables, err := a.listTables(schemaCtx)
	if err != nil {
		return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: a.conn.Kind, Err: err}
	}

	schema := &models.SourceSchema{
		SourceID:   a.conn.ID,
		SourceName: a.conn.Name,
		SourceKind: a.conn.Kind,
	}

	for _, name := range tables {
		table, err := a.describeTable(schemaCtx, name)
		if err != nil {
			slog.Warn("Skipping table in schema extraction",
				"connection_id", a.conn.ID, "table", name, "error", err)
			continue
		}
		a.attachSampleRows(schemaCtx, table)
		schema.Tables = append(schema.Tables, *table)
	}

	if len(schema.Tables) == 0 {
		return nil, &SchemaExtractionError{
			SourceID: a.conn.ID, Kind: a.conn.Kind,
			Err: fmt.Errorf("no readable tables found"),
		}
	}
	return schema, nil
}

func (a *SQLAdapter) listTables(ctx context.Context) ([]string, error) {
	var query string
	switch a.dialect {
	case dialectPostgres:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			  AND table_schema NOT IN ('pg_catalog', 'information_schema')
			  AND table_schema NOT LIKE 'pg_%'
			ORDER BY table_name`
	case dialectMySQL:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE()
			  AND table_type = 'BASE TABLE'
			ORDER BY table_name`
	case dialectSQLite:
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (a *SQLAdapter) describeTable(ctx context.Context, table string) (*models.Table, error) {
	switch a.dialect {
	case dialectSQLite:
		return a.describeSQLiteTable(ctx, table)
	default:
		return a.describeInfoSchemaTable(ctx, table)
	}
}

func (a *SQLAdapter) describeInfoSchemaTable(ctx context.Context, table string) (*models.Table, error) {
	var colQuery, pkQuery string
	switch a.dialect {
	case dialectPostgres:
		colQuery = `SELECT column_name, data_type, is_nullable FROM information_schema.columns
			WHERE table_name = $1 AND table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY ordinal_position`
		pkQuery = `SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			WHERE tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'`
	case dialectMySQL:
		colQuery = `SELECT column_name, data_type, is_nullable FROM information_schema.columns
			WHERE table_name = ? AND table_schema = DATABASE()
			ORDER BY ordinal_position`
		pkQuery = `SELECT column_name FROM information_schema.columns
			WHERE table_name = ? AND table_schema = DATABASE() AND column_key = 'PRI'`
	}

	pks := make(map[string]bool)
	pkRows, err := a.db.QueryContext(ctx, pkQuery, table)
	if err == nil {
		defer pkRows.Close()
		for pkRows.Next() {
			var col string
			if pkRows.Scan(&col) == nil {
				pks[col] = true
			}
		}
	}

	rows, err := a.db.QueryContext(ctx, colQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	t := &models.Table{Name: table}
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, models.Column{
			Name:       name,
			DataType:   dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: pks[name],
		})
	}
	return t, rows.Err()
}

func (a *SQLAdapter) describeSQLiteTable(ctx context.Context, table string) (*models.Table, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", a.quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	t := &models.Table{Name: table}
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, models.Column{
			Name:       name,
			DataType:   dataType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	return t, rows.Err()
}

// attachSampleRows collects up to SampleRowLimit rows for AI grounding.
// Sensitive columns are redacted here, at the extraction boundary, so the
// prompt builder can never see raw values.
func (a *SQLAdapter) attachSampleRows(ctx context.Context, table *models.Table) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", a.quoteIdent(table.Name), SampleRowLimit)
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		slog.Debug("Sample row collection failed",
			"connection_id", a.conn.ID, "table", table.Name, "error", err)
		return
	}
	defer rows.Close()

	_, materialized, err := materializeRows(rows)
	if err != nil {
		return
	}
	for _, row := range materialized {
		table.SampleRows = append(table.SampleRows, summary.RedactRow(row))
	}
}

// quoteIdent quotes an identifier for the adapter's dialect, doubling any
// embedded quote character. Sample-row and PRAGMA queries are the only places
// identifiers are interpolated; user SQL goes through the safety validator.
func (a *SQLAdapter) quoteIdent(name string) string {
	quote, doubled := `"`, `""`
	if a.dialect == dialectMySQL {
		quote, doubled = "`", "``"
	}
	escaped := ""
	for _, r := range name {
		if string(r) == quote {
			escaped += doubled
		} else {
			escaped += string(r)
		}
	}
	return quote + escaped + quote
}
