package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DB represents a PostgreSQL database connection
type DB struct {
	client *sql.DB
	config *Config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	Host               string        // Database host
	Port               string        // Database port
	User               string        // Database user
	Password           string        // Database password
	Database           string        // Database name
	SSLMode            string        // SSL mode (disable, require, verify-ca, verify-full)
	MaxIdleConns       int           // Maximum number of idle connections
	MaxOpenConns       int           // Maximum number of open connections
	MaxLifetime        time.Duration // Maximum lifetime of a connection
	StatementTimeoutMs int           // Server-side statement timeout
	DatabaseURL        string        // Original DATABASE_URL if used
}

// ConnectionString returns the PostgreSQL connection string
func (c *Config) ConnectionString() string {
	if c.DatabaseURL != "" {
		return augmentDSN(c.DatabaseURL, connParams(c.StatementTimeoutMs))
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	return augmentDSN(dsn, connParams(c.StatementTimeoutMs))
}

func (c *Config) validate() error {
	if c.DatabaseURL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 20 * time.Minute
	}
	if c.StatementTimeoutMs == 0 {
		c.StatementTimeoutMs = defaultStatementTimeoutMs
	}
}

// New creates a new PostgreSQL database connection and makes sure the schema exists
func New(config *Config) (*DB, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := setupSchema(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	return &DB{client: client, config: config}, nil
}

// NewFromSQL wraps an existing connection without touching the schema
func NewFromSQL(client *sql.DB) *DB {
	return &DB{client: client, config: &Config{}}
}

// InitFromEnv creates a PostgreSQL connection using environment variables.
// DATABASE_URL wins over the individual POSTGRES_* variables.
func InitFromEnv() (*DB, error) {
	timeoutMs, _ := strconv.Atoi(os.Getenv("POSTGRES_STATEMENT_TIMEOUT_MS"))

	if url := os.Getenv("DATABASE_URL"); url != "" {
		return New(&Config{
			DatabaseURL:        url,
			StatementTimeoutMs: timeoutMs,
		})
	}

	config := &Config{
		Host:               os.Getenv("POSTGRES_HOST"),
		Port:               os.Getenv("POSTGRES_PORT"),
		User:               os.Getenv("POSTGRES_USER"),
		Password:           os.Getenv("POSTGRES_PASSWORD"),
		Database:           os.Getenv("POSTGRES_DB"),
		SSLMode:            os.Getenv("POSTGRES_SSL_MODE"),
		StatementTimeoutMs: timeoutMs,
	}

	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == "" {
		config.Port = "5432"
	}
	if config.User == "" {
		config.User = "postgres"
	}
	if config.Database == "" {
		config.Database = "tour_crawler"
	}

	return New(config)
}

// schemaStatements create the crawler tables. Each statement is idempotent.
var schemaStatements = []struct {
	name string
	sql  string
}{
	{"tour_sources", `
		CREATE TABLE IF NOT EXISTS tour_sources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			max_depth INTEGER NOT NULL DEFAULT 3,
			max_pages INTEGER NOT NULL DEFAULT 50,
			request_delay_ms INTEGER NOT NULL DEFAULT 1000,
			timeout_ms INTEGER NOT NULL DEFAULT 30000,
			user_agent TEXT NOT NULL DEFAULT '',
			respect_robots BOOLEAN NOT NULL DEFAULT FALSE,
			last_crawled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"tour_packages", `
		CREATE TABLE IF NOT EXISTS tour_packages (
			id UUID PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES tour_sources(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			price TEXT NOT NULL,
			duration TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			original_url TEXT NOT NULL,
			services TEXT[] NOT NULL DEFAULT '{}',
			hotels JSONB NOT NULL DEFAULT '[]',
			required_documents TEXT[] NOT NULL DEFAULT '{}',
			cancellation_policy TEXT,
			destination TEXT NOT NULL,
			is_published BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"idx_tour_packages_source", `
		CREATE INDEX IF NOT EXISTS idx_tour_packages_source ON tour_packages(source_id)`},
	{"crawl_logs", `
		CREATE TABLE IF NOT EXISTS crawl_logs (
			id BIGSERIAL PRIMARY KEY,
			source_id TEXT NOT NULL,
			run_id UUID NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			detail JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"idx_crawl_logs_run", `
		CREATE INDEX IF NOT EXISTS idx_crawl_logs_run ON crawl_logs(run_id, created_at)`},
}

// setupSchema creates the necessary tables in PostgreSQL
func setupSchema(ctx context.Context, client *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := client.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.client.Close()
}

// GetDB returns the underlying database connection
func (db *DB) GetDB() *sql.DB {
	return db.client
}

// Serialise converts data to JSON string representation.
// It is named with British English spelling for consistency.
func Serialise(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to serialise data")
		return "{}"
	}
	return string(data)
}
