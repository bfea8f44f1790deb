package db

import (
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const (
	mysqlListTablesQuery = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() ORDER BY table_name`
	mysqlDescribeTableFormat = `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = '%s'
		ORDER BY ordinal_position`
)

// NewMySQLClient builds a MySQL client from MYSQL_* environment variables.
// The connection is opened lazily on first use.
func NewMySQLClient() *SQLClient {
	return NewSQLClient("mysql", "mysql", mysqlDSN)
}

func mysqlDSN() (string, error) {
	host := os.Getenv("MYSQL_HOST")
	user := os.Getenv("MYSQL_USER")
	dbname := os.Getenv("MYSQL_DB")
	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("MYSQL_HOST, MYSQL_USER, and MYSQL_DB must be set")
	}
	port := os.Getenv("MYSQL_PORT")
	if port == "" {
		port = "3306"
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = os.Getenv("MYSQL_PASSWORD")
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = dbname
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// RegisterMySQLTools adds the MySQL query/execute/schema tools.
func RegisterMySQLTools(reg *llm.ToolRegistry, client *SQLClient) {
	RegisterSQLTools(reg, client, mysqlListTablesQuery, mysqlDescribeTableFormat)
}
