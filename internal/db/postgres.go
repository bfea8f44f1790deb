package db

import (
	"fmt"
	"net/url"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const (
	pgListTablesQuery = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' ORDER BY table_name`
	pgDescribeTableFormat = `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = '%s'
		ORDER BY ordinal_position`
)

// NewPostgresClient builds a Postgres client from POSTGRES_* environment
// variables. The connection is opened lazily on first use.
func NewPostgresClient() *SQLClient {
	return NewSQLClient("postgres", "pgx", postgresDSN)
}

func postgresDSN() (string, error) {
	host := os.Getenv("POSTGRES_HOST")
	user := os.Getenv("POSTGRES_USER")
	dbname := os.Getenv("POSTGRES_DB")
	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("POSTGRES_HOST, POSTGRES_USER, and POSTGRES_DB must be set")
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + port,
		Path:   "/" + dbname,
	}
	if sslMode := os.Getenv("POSTGRES_SSL_MODE"); sslMode != "" {
		q := url.Values{"sslmode": {sslMode}}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// RegisterPostgresTools adds the Postgres query/execute/schema tools.
func RegisterPostgresTools(reg *llm.ToolRegistry, client *SQLClient) {
	RegisterSQLTools(reg, client, pgListTablesQuery, pgDescribeTableFormat)
}
