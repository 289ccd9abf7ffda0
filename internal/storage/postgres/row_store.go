// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
)

const defaultTable = "catalogue_rows"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RowStoreConfig controls the Postgres connection pool used for exported rows.
type RowStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RowStore writes merged output rows into Postgres as JSONB documents, one
// row per record, keyed by run ID and position.
//
//	CREATE TABLE catalogue_rows (
//		run_id    TEXT    NOT NULL,
//		row_index INTEGER NOT NULL,
//		fields    JSONB   NOT NULL,
//		PRIMARY KEY (run_id, row_index)
//	);
type RowStore struct {
	pool  txBeginner
	table string
}

// NewRowStore creates a Postgres-backed RowStore using the provided config.
func NewRowStore(ctx context.Context, cfg RowStoreConfig) (*RowStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RowStore{pool: pool, table: table}, nil
}

// NewRowStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRowStoreWithPool(pool txBeginner, table string) (*RowStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RowStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RowStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveRows inserts every row in a single transaction. Re-saving a run
// replaces its rows.
func (s *RowStore) SaveRows(ctx context.Context, runID string, rows []catalogue.OutputRow) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("row store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (run_id, row_index, fields)
VALUES ($1, $2, $3)
ON CONFLICT (run_id, row_index) DO UPDATE SET fields = EXCLUDED.fields`, s.table)

	for i, row := range rows {
		fields, err := json.Marshal(row)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx, query, runID, i, fields); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rows: %w", err)
	}
	return nil
}
