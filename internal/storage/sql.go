package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const profileTableDDL = `CREATE TABLE IF NOT EXISTS profile_kv (
	namespace TEXT NOT NULL,
	item_key TEXT NOT NULL,
	item_value TEXT NOT NULL,
	PRIMARY KEY (namespace, item_key)
)`

// SQL stores entries in the profile_kv table, scoped by namespace. It works
// on SQLite and Postgres.
type SQL struct {
	db        *sql.DB
	driver    string
	namespace string
	ownsDB    bool
}

// NewSQL ensures the profile table exists. When ownsDB is set Close closes
// the underlying database.
func NewSQL(ctx context.Context, db *sql.DB, driver, namespace string, ownsDB bool) (*SQL, error) {
	if namespace == "" {
		namespace = "default"
	}
	if _, err := db.ExecContext(ctx, profileTableDDL); err != nil {
		if ownsDB {
			db.Close()
		}
		return nil, fmt.Errorf("create profile table: %w", err)
	}
	return &SQL{db: db, driver: driver, namespace: namespace, ownsDB: ownsDB}, nil
}

// WithNamespace returns a view of the same table scoped to namespace. The
// view never closes the shared database.
func (s *SQL) WithNamespace(namespace string) *SQL {
	return &SQL{db: s.db, driver: s.driver, namespace: namespace}
}

func (s *SQL) Namespace() string { return s.namespace }

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		Rebind(s.driver, `SELECT item_value FROM profile_kv WHERE namespace = ? AND item_key = ?`),
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		Rebind(s.driver, `INSERT INTO profile_kv (namespace, item_key, item_value) VALUES (?, ?, ?)
		ON CONFLICT (namespace, item_key) DO UPDATE SET item_value = excluded.item_value`),
		s.namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
