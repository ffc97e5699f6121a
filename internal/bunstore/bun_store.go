// Package bunstore provides a persistent cache.Store adapter on top of bun.
// Unlike the in-memory adapter, entries written here survive process
// restarts, which is what makes offline fallback useful after a redeploy:
// the namespace outlives the worker that populated it.
//
// The schema is deliberately flat, one row per cached entry:
//
//	cached_responses(id, namespace, request_key, snapshot, created_at)
//
// with a unique (namespace, request_key) index so puts are per-entry atomic
// upserts. Namespaces are purely a column value: they exist while rows for
// them exist, are listed with a DISTINCT scan, and are deleted with a bulk
// DELETE.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-offline-cache/cache"
)

// cachedResponse is the row model for a single namespace entry.
type cachedResponse struct {
	bun.BaseModel `bun:"table:cached_responses,alias:cr"`

	ID         string    `bun:"id,pk"`
	Namespace  string    `bun:"namespace,notnull"`
	RequestKey string    `bun:"request_key,notnull"`
	Snapshot   []byte    `bun:"snapshot,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// Interface assertion to ensure bunStore implements cache.Store.
var _ cache.Store = (*bunStore)(nil)

// bunStore is a cache.Store persisting entries through a bun database.
type bunStore struct {
	db *bun.DB
}

// New wraps an existing bun database as a cache.Store, creating the schema
// if it is missing. Use this when the application already manages its own
// database handle.
func New(ctx context.Context, db *bun.DB) (*bunStore, error) {
	s := &bunStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}
	return s, nil
}

// NewSQLite opens (creating if necessary) a SQLite-backed store at path.
// ":memory:" gives an ephemeral store, which the tests use.
func NewSQLite(ctx context.Context, path string) (*bunStore, error) {
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// Every pooled connection would otherwise get its own empty database.
		sqldb.SetMaxOpenConns(1)
	}
	return New(ctx, bun.NewDB(sqldb, sqlitedialect.New()))
}

// NewPostgres opens a Postgres-backed store using the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*bunStore, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return New(ctx, bun.NewDB(sqldb, pgdialect.New()))
}

// Close releases the underlying database handle.
func (s *bunStore) Close() error {
	return s.db.Close()
}

func (s *bunStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*cachedResponse)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := s.db.NewCreateIndex().
		Model((*cachedResponse)(nil)).
		Index("cached_responses_ns_key_idx").
		Unique().
		Column("namespace", "request_key").
		IfNotExists().
		Exec(ctx)
	return err
}

// Open implements cache.Store.Open. A namespace needs no explicit creation:
// it comes into being with its first row.
func (s *bunStore) Open(ctx context.Context, name string) (cache.Namespace, error) {
	return &bunNamespace{db: s.db, name: name}, nil
}

// DeleteNamespace implements cache.Store.DeleteNamespace.
func (s *bunStore) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*cachedResponse)(nil)).
		Where("namespace = ?", name).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete namespace %q: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return rows > 0, nil
}

// ListNamespaces implements cache.Store.ListNamespaces.
func (s *bunStore) ListNamespaces(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*cachedResponse)(nil)).
		ColumnExpr("DISTINCT namespace").
		OrderExpr("namespace ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return names, nil
}

// bunNamespace scopes entry operations to one namespace value.
type bunNamespace struct {
	db   *bun.DB
	name string
}

// Name implements cache.Namespace.Name.
func (n *bunNamespace) Name() string {
	return n.name
}

// Match implements cache.Namespace.Match. A miss returns (nil, nil).
func (n *bunNamespace) Match(ctx context.Context, key string) (*cache.Snapshot, error) {
	rec := new(cachedResponse)
	err := n.db.NewSelect().
		Model(rec).
		Where("namespace = ?", n.name).
		Where("request_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %q in namespace %q: %w", key, n.name, err)
	}
	return cache.UnmarshalSnapshot(rec.Snapshot)
}

// Put implements cache.Namespace.Put as an upsert keyed on
// (namespace, request_key), so concurrent writes for the same resource are
// last-write-wins.
func (n *bunNamespace) Put(ctx context.Context, key string, snap *cache.Snapshot) error {
	data, err := snap.MarshalBinary()
	if err != nil {
		return err
	}

	rec := &cachedResponse{
		ID:         uuid.NewString(),
		Namespace:  n.name,
		RequestKey: key,
		Snapshot:   data,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = n.db.NewInsert().
		Model(rec).
		On("CONFLICT (namespace, request_key) DO UPDATE").
		Set("snapshot = EXCLUDED.snapshot").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put %q in namespace %q: %w", key, n.name, err)
	}
	return nil
}

// Keys implements cache.Namespace.Keys.
func (n *bunNamespace) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := n.db.NewSelect().
		Model((*cachedResponse)(nil)).
		Column("request_key").
		Where("namespace = ?", n.name).
		OrderExpr("request_key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("list keys in namespace %q: %w", n.name, err)
	}
	return keys, nil
}
