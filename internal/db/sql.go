// Package db exposes the user's operational databases (Postgres, MySQL,
// MongoDB) as agent tools. Query tools are read-only; statements that
// modify data are separate tools that require user approval.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const maxRows = 100

// SQLClient lazily opens one database/sql connection pool and hands it to
// the generated tools. Reset closes the pool so the next call reconnects
// with fresh credentials.
type SQLClient struct {
	service string
	driver  string
	dsn     func() (string, error)

	mu sync.Mutex
	db *sql.DB
}

func NewSQLClient(service, driver string, dsn func() (string, error)) *SQLClient {
	return &SQLClient{service: service, driver: driver, dsn: dsn}
}

func (c *SQLClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

func (c *SQLClient) conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	dsn, err := c.dsn()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.service, err)
	}
	db, err := sql.Open(c.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.service, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: connection failed: %w", c.service, err)
	}
	c.db = db
	return db, nil
}

// query runs a read statement and formats up to maxRows rows.
func (c *SQLClient) query(ctx context.Context, stmt string) (string, error) {
	db, err := c.conn(ctx)
	if err != nil {
		return "", err
	}
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.service, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(columns, ", "))

	count := 0
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if count >= maxRows {
			fmt.Fprintf(&b, "... (truncated at %d rows)\n", maxRows)
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatSQLValue(v)
		}
		fmt.Fprintf(&b, "(%s)\n", strings.Join(fields, ", "))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if count == 0 {
		return "Query returned no results.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// execute runs a write statement.
func (c *SQLClient) execute(ctx context.Context, stmt string) (string, error) {
	db, err := c.conn(ctx)
	if err != nil {
		return "", err
	}
	result, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.service, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "Statement executed successfully.", nil
	}
	return fmt.Sprintf("Statement executed successfully. Rows affected: %d", affected), nil
}

func formatSQLValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

var writePrefixes = []string{"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TRUNCATE", "GRANT", "REVOKE"}

// isWriteStatement reports whether a statement modifies data or schema.
func isWriteStatement(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for _, prefix := range writePrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// RegisterSQLTools adds query/execute/list/describe tools for one SQL
// service. listTablesQuery and describeTableQuery are per-dialect; the
// describe query receives the table name via fmt.Sprintf.
func RegisterSQLTools(reg *llm.ToolRegistry, client *SQLClient, listTablesQuery, describeTableFormat string) {
	reg.Register(&sqlQueryTool{client: client})
	reg.RegisterInterrupting(&sqlExecuteTool{client: client}, func(args map[string]any) string {
		stmt, _ := args["statement"].(string)
		return fmt.Sprintf("Run %s statement:\n  %s", client.service, strings.TrimSpace(stmt))
	})
	reg.Register(&sqlListTablesTool{client: client, query: listTablesQuery})
	reg.Register(&sqlDescribeTableTool{client: client, format: describeTableFormat})
}

type sqlQueryTool struct{ client *SQLClient }

type sqlQueryArgs struct {
	Query string `json:"query"`
}

func (t *sqlQueryTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.client.service + "_query",
		Description: fmt.Sprintf("Execute a read-only SQL query against the %s database. Write statements are rejected; use %s_execute instead.", t.client.service, t.client.service),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "The SELECT query to run"},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *sqlQueryTool) Preview(args json.RawMessage) string {
	var a sqlQueryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateStatement(a.Query)
}

func (t *sqlQueryTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a sqlQueryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if isWriteStatement(a.Query) {
		return "", fmt.Errorf("write statements are not allowed here; use %s_execute", t.client.service)
	}
	return t.client.query(ctx, a.Query)
}

type sqlExecuteTool struct{ client *SQLClient }

type sqlExecuteArgs struct {
	Statement string `json:"statement"`
}

func (t *sqlExecuteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.client.service + "_execute",
		Description: fmt.Sprintf("Execute a write statement (INSERT, UPDATE, DELETE, DDL) against the %s database.", t.client.service),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"statement": map[string]any{"type": "string", "description": "The SQL statement to execute"},
			},
			"required":             []string{"statement"},
			"additionalProperties": false,
		},
	}
}

func (t *sqlExecuteTool) Preview(args json.RawMessage) string {
	var a sqlExecuteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateStatement(a.Statement)
}

func (t *sqlExecuteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a sqlExecuteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Statement == "" {
		return "", fmt.Errorf("statement is required")
	}
	return t.client.execute(ctx, a.Statement)
}

type sqlListTablesTool struct {
	client *SQLClient
	query  string
}

func (t *sqlListTablesTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.client.service + "_list_tables",
		Description: fmt.Sprintf("List all tables in the %s database.", t.client.service),
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}

func (t *sqlListTablesTool) Preview(json.RawMessage) string { return "" }

func (t *sqlListTablesTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.client.query(ctx, t.query)
}

type sqlDescribeTableTool struct {
	client *SQLClient
	format string
}

type sqlDescribeArgs struct {
	TableName string `json:"table_name"`
}

func (t *sqlDescribeTableTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.client.service + "_describe_table",
		Description: "Get the schema (columns, types, nullability) for a specific table.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table_name": map[string]any{"type": "string", "description": "The table to describe"},
			},
			"required":             []string{"table_name"},
			"additionalProperties": false,
		},
	}
}

func (t *sqlDescribeTableTool) Preview(args json.RawMessage) string {
	var a sqlDescribeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.TableName
}

func (t *sqlDescribeTableTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a sqlDescribeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.TableName == "" {
		return "", fmt.Errorf("table_name is required")
	}
	if strings.ContainsAny(a.TableName, "'\";") {
		return "", fmt.Errorf("invalid table name")
	}
	return t.client.query(ctx, fmt.Sprintf(t.format, a.TableName))
}

func truncateStatement(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
