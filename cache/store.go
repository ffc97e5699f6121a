package cache

import (
	"context"
	"net/http"
)

// Namespace is a single named key-value cache mapping request keys to
// response snapshots. Namespaces are the unit of versioning: bumping the
// configured cache name abandons the old namespace and the worker prunes it
// on the next activation.
type Namespace interface {
	// Name returns the namespace name this handle was opened with.
	Name() string

	// Match looks up the snapshot stored under key. A miss is not an error:
	// Match returns (nil, nil) when no entry exists.
	Match(ctx context.Context, key string) (*Snapshot, error)

	// Put stores snap under key, replacing any previous entry. Puts for the
	// same key are last-write-wins; the store guarantees per-entry atomicity.
	Put(ctx context.Context, key string, snap *Snapshot) error

	// Keys returns the request keys currently stored in this namespace.
	Keys(ctx context.Context) ([]string, error)
}

// Store is the cache storage capability the worker operates against. It is
// deliberately modeled after the operations the worker needs and nothing
// more, so a fake in-memory implementation can stand in during tests.
type Store interface {
	// Open returns a handle to the named namespace, creating it lazily if it
	// does not exist yet.
	Open(ctx context.Context, name string) (Namespace, error)

	// DeleteNamespace removes the named namespace and every entry in it. It
	// reports whether a namespace was actually deleted; deleting a name that
	// does not exist is a no-op, not an error.
	DeleteNamespace(ctx context.Context, name string) (bool, error)

	// ListNamespaces returns the names of all namespaces currently held by
	// the store, in lexical order.
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Fetcher is the injected network capability: it maps a request to a live
// response or a failure. The production implementation wraps an http.Client;
// tests substitute a scripted fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}
