package gatewaycache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-cache/cache"
	"github.com/goliatone/go-offline-cache/worker"
)

// Interface assertion to ensure Gateway implements http.Handler.
var _ http.Handler = (*Gateway)(nil)

// Gateway binds a worker to live HTTP traffic. It fronts the configured
// origin and routes every inbound request either through the worker's fetch
// interception or, for bypassed requests and while the worker is not yet
// active, straight to the network. It is deliberately thin: all caching
// policy lives in the worker, all storage policy in the store.
type Gateway struct {
	worker  *worker.Worker
	fetcher cache.Fetcher
	origin  *url.URL
	log     *zap.Logger
}

// New constructs a gateway over the worker and the network capability the
// passthrough path uses. The origin comes from the worker's configuration.
func New(w *worker.Worker, fetcher cache.Fetcher, logger *zap.Logger) (*Gateway, error) {
	if w == nil {
		return nil, errors.New("gatewaycache: worker is required")
	}
	if fetcher == nil {
		return nil, errors.New("gatewaycache: fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	origin, err := url.Parse(w.Config().Origin)
	if err != nil {
		return nil, fmt.Errorf("gatewaycache: parse origin: %w", err)
	}

	return &Gateway{
		worker:  w,
		fetcher: fetcher,
		origin:  origin,
		log:     logger,
	}, nil
}

// Start drives the worker through its lifecycle: install, then activate.
// An install failure is fatal, since the gateway would be promising offline
// support it cannot deliver. Activation pruning failures are best-effort by
// contract, so they are logged and swallowed: stale namespaces survive
// until a later activation, nothing more.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.worker.Install(ctx); err != nil {
		return err
	}
	if err := g.worker.Activate(ctx); err != nil {
		g.log.Warn("stale cache pruning incomplete", zap.Error(err))
	}
	return nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	out := g.outbound(r)

	var (
		resp    *http.Response
		err     error
		outcome string
	)
	if g.worker.Active() && g.worker.Intercepts(out) {
		outcome = "intercepted"
		resp, err = g.worker.Fetch(r.Context(), out)
	} else {
		outcome = "passthrough"
		resp, err = g.fetcher.Fetch(r.Context(), out)
	}

	if err != nil {
		requestsTotal.WithLabelValues("failed").Inc()
		g.log.Debug("request failed with no fallback",
			zap.String("method", r.Method),
			zap.String("url", out.URL.String()),
			zap.Error(err))
		http.Error(rw, "upstream unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(outcome).Inc()

	copyHeader(rw.Header(), resp.Header)
	rw.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(rw, resp.Body); err != nil {
		// The client went away mid-body; nothing left to salvage.
		g.log.Debug("response copy aborted",
			zap.String("url", out.URL.String()),
			zap.Error(err))
	}
}

// outbound rewrites an inbound server request into the upstream request the
// worker and fetcher operate on: same method, headers, and body, with the
// URL re-rooted at the origin.
func (g *Gateway) outbound(r *http.Request) *http.Request {
	out := r.Clone(r.Context())
	out.URL.Scheme = g.origin.Scheme
	out.URL.Host = g.origin.Host
	out.Host = g.origin.Host
	out.RequestURI = "" // client requests must not carry the server-side field
	return out
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
