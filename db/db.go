package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connection pool defaults.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

// DB represents a database connection
type DB struct {
	conn *sqlx.DB
	log  *zap.Logger
	// Prepared statements cache
	stmtCache struct {
		sync.RWMutex
		statements map[string]*sqlx.Stmt
	}
}

// New connects to postgres using dsn.
func New(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", ErrInvalidInput)
	}
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("Connecting to database")
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	conn.SetMaxOpenConns(defaultMaxOpenConns)
	conn.SetMaxIdleConns(defaultMaxIdleConns)
	conn.SetConnMaxLifetime(defaultConnMaxLifetime)

	log.Info("Database connection established",
		zap.Int("max_open_conns", defaultMaxOpenConns),
		zap.Int("max_idle_conns", defaultMaxIdleConns),
		zap.Duration("conn_max_lifetime", defaultConnMaxLifetime))
	return newDB(conn, log), nil
}

func newDB(conn *sqlx.DB, log *zap.Logger) *DB {
	database := &DB{conn: conn, log: log}
	database.stmtCache.statements = make(map[string]*sqlx.Stmt)
	return database
}

// getStmt returns a prepared statement from cache or creates a new one
func (db *DB) getStmt(ctx context.Context, query string) (*sqlx.Stmt, error) {
	db.stmtCache.RLock()
	stmt, exists := db.stmtCache.statements[query]
	db.stmtCache.RUnlock()

	if exists {
		return stmt, nil
	}

	db.stmtCache.Lock()
	defer db.stmtCache.Unlock()

	// Double-check after acquiring write lock
	if stmt, exists = db.stmtCache.statements[query]; exists {
		return stmt, nil
	}

	stmt, err := db.conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	db.stmtCache.statements[query] = stmt
	return stmt, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	// Close all prepared statements
	db.stmtCache.Lock()
	for _, stmt := range db.stmtCache.statements {
		stmt.Close()
	}
	db.stmtCache.statements = make(map[string]*sqlx.Stmt)
	db.stmtCache.Unlock()

	return db.conn.Close()
}
