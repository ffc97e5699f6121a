package di

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-cache/cache"
	"github.com/goliatone/go-offline-cache/gatewaycache"
	"github.com/goliatone/go-offline-cache/internal/cacheinfra"
	"github.com/goliatone/go-offline-cache/worker"
)

// Container provides dependency injection for the offline cache components.
// It manages singleton instances of the store, the network fetcher, the
// worker, and the gateway, wired together from a single configuration.
type Container struct {
	store   cache.Store
	fetcher cache.Fetcher
	worker  *worker.Worker
	gateway *gatewaycache.Gateway
	config  cache.Config
	log     *zap.Logger
}

// NewContainer creates a container with the provided cache configuration and
// the production defaults for everything else: the in-memory sturdyc-backed
// store and an *http.Client fetcher. A nil logger disables logging.
func NewContainer(config cache.Config, logger *zap.Logger) (*Container, error) {
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return NewContainerWithStore(config, store, gatewaycache.NewClientFetcher(nil), logger)
}

// NewContainerWithDefaults creates a container using the default
// configuration. This is a convenience constructor for typical use cases
// where custom configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig(), nil)
}

// NewContainerWithStore creates a container over an explicit store and
// fetcher. This is the constructor for persistent deployments (a bunstore
// over SQLite or Postgres) and for tests that inject doubles.
func NewContainerWithStore(config cache.Config, store cache.Store, fetcher cache.Fetcher, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	w, err := worker.New(store, fetcher, config, logger)
	if err != nil {
		return nil, err
	}
	gw, err := gatewaycache.New(w, fetcher, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		store:   store,
		fetcher: fetcher,
		worker:  w,
		gateway: gw,
		config:  config,
		log:     logger,
	}, nil
}

// Start drives the worker through install and activation via the gateway.
// After Start returns successfully the gateway intercepts qualifying
// requests; before that it passes everything through to the network.
func (c *Container) Start(ctx context.Context) error {
	return c.gateway.Start(ctx)
}

// Store returns the singleton store instance.
// This allows access to the underlying cache for advanced use cases.
func (c *Container) Store() cache.Store {
	return c.store
}

// Fetcher returns the singleton network fetcher instance.
func (c *Container) Fetcher() cache.Fetcher {
	return c.fetcher
}

// Worker returns the singleton worker instance.
func (c *Container) Worker() *worker.Worker {
	return c.worker
}

// Gateway returns the singleton gateway instance. It is the http.Handler a
// host mounts in front of the origin.
func (c *Container) Gateway() *gatewaycache.Gateway {
	return c.gateway
}

// Config returns a copy of the cache configuration used by this container.
// This is useful for debugging and monitoring purposes.
func (c *Container) Config() cache.Config {
	return c.config
}
