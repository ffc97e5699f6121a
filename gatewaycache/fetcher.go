package gatewaycache

import (
	"context"
	"net/http"

	"github.com/goliatone/go-offline-cache/cache"
)

// Interface assertion to ensure ClientFetcher implements cache.Fetcher.
var _ cache.Fetcher = (*ClientFetcher)(nil)

// ClientFetcher is the production cache.Fetcher: a thin adapter over
// *http.Client. Timeouts and cancellation come from the client and the
// request context; the worker adds no retry or backoff of its own.
type ClientFetcher struct {
	client *http.Client
}

// NewClientFetcher wraps the given client; nil means a default client.
func NewClientFetcher(client *http.Client) *ClientFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &ClientFetcher{client: client}
}

// Fetch implements cache.Fetcher.
func (f *ClientFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f.client.Do(req.WithContext(ctx))
}
