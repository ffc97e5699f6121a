package di

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-offline-cache/internal/cacheinfra"
	"github.com/goliatone/go-offline-cache/pkg/testsupport"
)

func benchContainer(b *testing.B, offline bool) *Container {
	b.Helper()

	cfg := integrationConfig("v1")
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	if err != nil {
		b.Fatalf("NewMemoryStore failed: %v", err)
	}
	fetcher := testsupport.NewScriptedFetcher()
	scriptOrigin(fetcher, cfg)

	c, err := NewContainerWithStore(cfg, store, fetcher, nil)
	if err != nil {
		b.Fatalf("NewContainerWithStore failed: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		b.Fatalf("Start failed: %v", err)
	}
	c.Worker().Wait()
	fetcher.SetOffline(offline)
	return c
}

func BenchmarkFetch_NetworkFirst(b *testing.B) {
	c := benchContainer(b, false)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := c.Worker().Fetch(ctx, httptest.NewRequest("GET", "http://app.local/receipts/7", nil))
		if err != nil {
			b.Fatalf("Fetch failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	b.StopTimer()
	c.Worker().Wait()
}

func BenchmarkFetch_OfflineFallback(b *testing.B) {
	c := benchContainer(b, true)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := c.Worker().Fetch(ctx, httptest.NewRequest("GET", "http://app.local/", nil))
		if err != nil {
			b.Fatalf("offline fetch failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
