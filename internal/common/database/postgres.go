package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"visa-checklist/internal/common/config"

	_ "github.com/lib/pq"
)

// checklistSchema creates the only table this service writes to.
//
//go:embed schema.sql
var checklistSchema string

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// EnsureSchema applies the document_checklists DDL. Statements are
// idempotent.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, checklistSchema); err != nil {
		return fmt.Errorf("failed to apply checklist schema: %w", err)
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
