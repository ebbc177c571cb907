// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webharvest/webharvest/internal/scraper"
)

// PgxIface is the subset of pgxpool.Pool the store depends on; pgxmock
// satisfies it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// ResultStore implements scraper.ResultStore using Postgres.
type ResultStore struct {
	pool  PgxIface
	table string
}

// NewResultStore connects a pool and returns the store.
func NewResultStore(ctx context.Context, dsn string) (*ResultStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &ResultStore{pool: pool, table: "harvest_results"}, nil
}

// NewResultStoreWithPool wraps an existing pool; used by tests.
func NewResultStoreWithPool(pool PgxIface, table string) (*ResultStore, error) {
	if table == "" {
		table = "harvest_results"
	}
	return &ResultStore{pool: pool, table: table}, nil
}

// Close closes the underlying connection pool.
func (s *ResultStore) Close() {
	s.pool.Close()
}

// StoreResult inserts one terminal result. The extracted data mapping is
// stored as JSONB.
func (s *ResultStore) StoreResult(ctx context.Context, batchID string, res scraper.Result) error {
	data, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Errorf("marshal result data: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (batch_id, task_id, url, scenario, status, error_text, execution_time, completed_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		batchID,
		res.TaskID,
		res.URL,
		string(res.Scenario),
		string(res.Status),
		res.Error,
		res.ExecutionTime,
		res.CompletedAt,
		data,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}
