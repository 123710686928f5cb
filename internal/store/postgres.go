package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores documents in a jsonb table.
type PostgresBackend struct {
	db *pgxpool.Pool
}

// NewPostgresBackend connects to dsn and ensures the schema exists.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	b, err := NewPostgresBackendWithPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendWithPool reuses an existing pool.
func NewPostgresBackendWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS dq_documents (
  namespace text NOT NULL,
  key text NOT NULL,
  value jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (namespace, key)
);
`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create dq_documents: %w", err)
	}
	return &PostgresBackend{db: pool}, nil
}

func (p *PostgresBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := checkKey(namespace, key); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx, `
INSERT INTO dq_documents (namespace, key, value) VALUES ($1, $2, $3)
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		namespace, key, string(value))
	return err
}

func (p *PostgresBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value::text FROM dq_documents WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (p *PostgresBackend) List(ctx context.Context, namespace string) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT key FROM dq_documents WHERE namespace = $1 ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, namespace, key string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM dq_documents WHERE namespace = $1 AND key = $2`, namespace, key)
	return err
}

func (p *PostgresBackend) Close() error {
	p.db.Close()
	return nil
}
