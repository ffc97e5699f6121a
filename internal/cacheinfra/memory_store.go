// Package cacheinfra provides the in-memory cache.Store adapter backed by
// sturdyc. Each namespace maps to its own sturdyc client; a process-wide
// registry keeps the namespace handles so they can be listed and deleted as
// units, the way the worker's activation step requires.
package cacheinfra

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-offline-cache/cache"
)

// Config holds the configuration for the sturdyc-backed store.
type Config struct {
	// Capacity defines the maximum number of entries a single namespace can
	// store. Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the time-to-live applied to entries. Cached responses carry no
	// expiry of their own (a namespace lives until its version is retired),
	// so the default is deliberately far in the future. sturdyc requires a
	// positive value.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict when
	// a namespace reaches capacity. Must be between 1-100. Default: 10.
	// Capacity eviction is the stand-in for the host reclaiming storage.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                365 * 24 * time.Hour,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
	}
}

// ToSturdycOptions converts the Config to a sturdyc.Option slice. Capacity,
// NumShards, TTL, and EvictionPercentage are passed directly to
// sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Interface assertion to ensure memoryStore implements cache.Store.
var _ cache.Store = (*memoryStore)(nil)

// memoryStore is a cache.Store keeping every namespace in process memory.
type memoryStore struct {
	cfg        Config
	namespaces *xsync.MapOf[string, *memoryNamespace]
}

// NewMemoryStore creates an in-memory store. It validates the configuration
// up front; namespaces themselves are created lazily on first Open.
func NewMemoryStore(cfg Config) (*memoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &memoryStore{
		cfg:        cfg,
		namespaces: xsync.NewMapOf[string, *memoryNamespace](),
	}, nil
}

// Open implements cache.Store.Open. Opening the same name twice returns
// handles over the same underlying namespace.
func (s *memoryStore) Open(ctx context.Context, name string) (cache.Namespace, error) {
	ns, _ := s.namespaces.LoadOrCompute(name, func() *memoryNamespace {
		return &memoryNamespace{
			name: name,
			client: sturdyc.New[[]byte](
				s.cfg.Capacity,
				s.cfg.NumShards,
				s.cfg.TTL,
				s.cfg.EvictionPercentage,
				s.cfg.ToSturdycOptions()...,
			),
		}
	})
	return ns, nil
}

// DeleteNamespace implements cache.Store.DeleteNamespace. The namespace and
// all of its entries are dropped in one step; deleting an absent name is a
// no-op reported through the boolean.
func (s *memoryStore) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	_, existed := s.namespaces.LoadAndDelete(name)
	return existed, nil
}

// ListNamespaces implements cache.Store.ListNamespaces.
func (s *memoryStore) ListNamespaces(ctx context.Context) ([]string, error) {
	var names []string
	s.namespaces.Range(func(name string, _ *memoryNamespace) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names, nil
}

// memoryNamespace wraps a sturdyc client holding msgpack-encoded snapshots.
type memoryNamespace struct {
	name   string
	client *sturdyc.Client[[]byte]
}

// Name implements cache.Namespace.Name.
func (n *memoryNamespace) Name() string {
	return n.name
}

// Match implements cache.Namespace.Match. A miss returns (nil, nil).
func (n *memoryNamespace) Match(ctx context.Context, key string) (*cache.Snapshot, error) {
	data, ok := n.client.Get(key)
	if !ok {
		return nil, nil
	}
	return cache.UnmarshalSnapshot(data)
}

// Put implements cache.Namespace.Put. sturdyc's Set is atomic per key, so
// concurrent puts for the same resource are last-write-wins without
// corruption.
func (n *memoryNamespace) Put(ctx context.Context, key string, snap *cache.Snapshot) error {
	data, err := snap.MarshalBinary()
	if err != nil {
		return err
	}
	n.client.Set(key, data)
	return nil
}

// Keys implements cache.Namespace.Keys.
func (n *memoryNamespace) Keys(ctx context.Context) ([]string, error) {
	keys := n.client.ScanKeys()
	sort.Strings(keys)
	return keys, nil
}
