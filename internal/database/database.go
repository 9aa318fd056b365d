// FilePath: server/watchdog/internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
)

// DB is an interface that both PostgreSQL and TimescaleDB must implement
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository represents common repository operations
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// conn wraps a sqlx handle. The app database and TimescaleDB share it and
// differ only in how they are opened.
type conn struct {
	db *sqlx.DB
}

// Wrap exposes an existing sqlx handle as a DB.
func Wrap(db *sqlx.DB) DB {
	return &conn{db: db}
}

func dsn(cfg config.PostgresConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

func open(cfg config.PostgresConfig, label string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", label, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	nuts.L.Infof("[%s] Connected to %s:%d/%s", label, cfg.Host, cfg.Port, cfg.DBName)
	return db, nil
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (DB, error) {
	db, err := open(cfg, "PostgresDB")
	if err != nil {
		return nil, err
	}
	return &conn{db: db}, nil
}

// NewTimescaleDB creates a new TimescaleDB database connection
func NewTimescaleDB(cfg config.PostgresConfig) (DB, error) {
	db, err := open(cfg, "TimescaleDB")
	if err != nil {
		return nil, err
	}

	// Verify TimescaleDB extension
	var hasTimescaleDB bool
	err = db.Get(&hasTimescaleDB, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')")
	if err != nil || !hasTimescaleDB {
		db.Close()
		return nil, fmt.Errorf("TimescaleDB extension not available")
	}
	return &conn{db: db}, nil
}

func (c *conn) Close() error {
	return c.db.Close()
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *conn) GetDB() *sqlx.DB {
	return c.db
}
