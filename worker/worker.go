package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-offline-cache/cache"
)

// State tracks where the worker is in its lifecycle. The ordering mirrors
// the host contract: a worker must install before it activates, and only an
// active worker intercepts traffic.
type State int32

const (
	// StateNew is a constructed worker that has not installed yet.
	StateNew State = iota
	// StateInstalled means the static asset set is cached and the worker is
	// immediately eligible for activation; there is no waiting phase.
	StateInstalled
	// StateActive means the worker has claimed its clients: from this point
	// every qualifying request is intercepted.
	StateActive
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	}
	return "invalid"
}

// Worker implements the offline cache lifecycle over an injected store and
// network capability: install populates the versioned namespace with the
// static asset set, activate prunes namespaces left behind by previous
// versions, and fetch applies the network-first strategy to intercepted
// requests.
//
// A Worker holds no request state of its own; the cache namespace is the
// only shared mutable resource, and all access to it goes through the
// store's atomic per-entry operations.
type Worker struct {
	store   cache.Store
	fetcher cache.Fetcher
	cfg     cache.Config
	log     *zap.Logger

	state  atomic.Int32
	writes sync.WaitGroup
}

// New constructs a worker. The store and fetcher are required; a nil logger
// disables logging. The configuration is validated here so a bad cache name
// or asset list fails at construction rather than mid-install.
func New(store cache.Store, fetcher cache.Fetcher, cfg cache.Config, logger *zap.Logger) (*Worker, error) {
	if store == nil {
		return nil, errors.New("worker: store is required")
	}
	if fetcher == nil {
		return nil, errors.New("worker: fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("worker: invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		log:     logger,
	}, nil
}

// Config returns a copy of the worker's configuration.
func (w *Worker) Config() cache.Config {
	return w.cfg
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Active reports whether the worker has claimed its clients.
func (w *Worker) Active() bool {
	return w.State() == StateActive
}

// Install populates the cache namespace named by the configured cache name
// with every precache asset. The static set is all-or-nothing: each asset
// is fetched first (concurrently) and nothing is committed until every
// fetch has succeeded with a 2xx status. A commit failure deletes the
// namespace again so no partial set is ever left behind.
//
// On success the worker moves straight to StateInstalled, the equivalent
// of skipping the waiting phase.
func (w *Worker) Install(ctx context.Context) error {
	ns, err := w.store.Open(ctx, w.cfg.CacheName)
	if err != nil {
		installsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("install %q: open namespace: %w", w.cfg.CacheName, err)
	}

	assets := w.cfg.AssetURLs()
	staged := make([]*cache.Snapshot, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	for i, rawURL := range assets {
		g.Go(func() error {
			snap, err := w.fetchAsset(gctx, rawURL)
			if err != nil {
				return err
			}
			staged[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		installsTotal.WithLabelValues("error").Inc()
		w.log.Error("install failed, nothing committed",
			zap.String("cache", w.cfg.CacheName),
			zap.Error(err))
		return fmt.Errorf("install %q: %w", w.cfg.CacheName, err)
	}

	for i, snap := range staged {
		if err := ns.Put(ctx, cache.KeyForURL(assets[i]), snap); err != nil {
			// Roll the partial set back so the namespace stays all-or-nothing.
			if _, delErr := w.store.DeleteNamespace(ctx, w.cfg.CacheName); delErr != nil {
				w.log.Warn("rollback of partial install failed",
					zap.String("cache", w.cfg.CacheName),
					zap.Error(delErr))
			}
			installsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("install %q: commit %s: %w", w.cfg.CacheName, assets[i], err)
		}
	}

	w.state.Store(int32(StateInstalled))
	installsTotal.WithLabelValues("ok").Inc()
	w.log.Info("installed static asset set",
		zap.String("cache", w.cfg.CacheName),
		zap.Int("assets", len(assets)))
	return nil
}

// fetchAsset retrieves one precache asset in full. Anything but a 2xx
// response fails the asset, and therefore the whole install.
func (w *Worker) fetchAsset(ctx context.Context, rawURL string) (*cache.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("precache %s: %w", rawURL, err)
	}

	resp, err := w.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("precache %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("precache %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("precache %s: read body: %w", rawURL, err)
	}

	return &cache.Snapshot{
		URL:       cache.KeyForURL(rawURL),
		Status:    resp.StatusCode,
		Header:    resp.Header.Clone(),
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Activate prunes every namespace whose name differs from the configured
// cache name and then claims the worker's clients. Deletions are
// independent and best-effort: they run concurrently, a failure on one
// never blocks the others, and activation itself always completes. Failed
// deletions are reported in the returned (joined) error so callers can log
// them; the stale namespaces simply survive until a later activation.
func (w *Worker) Activate(ctx context.Context) error {
	// Claiming happens regardless of how pruning goes: a stale cache is a
	// hygiene problem, an unclaimed client is a broken worker.
	defer func() {
		w.state.Store(int32(StateActive))
		w.log.Info("activated, clients claimed", zap.String("cache", w.cfg.CacheName))
	}()

	names, err := w.store.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("activate %q: list namespaces: %w", w.cfg.CacheName, err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	for _, name := range names {
		if name == w.cfg.CacheName {
			continue
		}
		g.Go(func() error {
			deleted, err := w.store.DeleteNamespace(ctx, name)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("delete stale namespace %q: %w", name, err))
				mu.Unlock()
				w.log.Warn("stale namespace not deleted",
					zap.String("namespace", name),
					zap.Error(err))
				return nil // siblings keep going
			}
			if deleted {
				prunedNamespacesTotal.Inc()
				w.log.Debug("pruned stale namespace", zap.String("namespace", name))
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Intercepts reports whether the worker handles the request at all. Non-GET
// requests and URLs containing a bypass substring are left to default
// handling: dynamic data must never be masked by stale cache entries.
func (w *Worker) Intercepts(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	return !w.cfg.Bypassed(req.URL.String())
}

// Wait blocks until every background snapshot write spawned so far has
// settled. Production code never needs it (the writes are fire-and-forget
// by contract) but tests use it to observe write completion without
// sleeping.
func (w *Worker) Wait() {
	w.writes.Wait()
}
