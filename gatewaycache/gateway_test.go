package gatewaycache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-offline-cache/cache"
	"github.com/goliatone/go-offline-cache/pkg/testsupport"
	"github.com/goliatone/go-offline-cache/worker"
)

func testConfig() cache.Config {
	return cache.Config{
		CacheName: "receipts-v1",
		Origin:    "http://app.local",
		Precache: []string{
			"/",
			"/static/css/style.css",
			"/static/js/app.js",
		},
		BypassSubstrings: []string{"/api/"},
	}
}

// respondToAssets scripts a 200 for every precache asset so Start succeeds.
func respondToAssets(f *testsupport.ScriptedFetcher, cfg cache.Config) {
	for _, u := range cfg.AssetURLs() {
		f.Respond(u, "asset "+u)
	}
}

func newTestGateway(t *testing.T, store cache.Store, fetcher cache.Fetcher, cfg cache.Config) (*Gateway, *worker.Worker) {
	t.Helper()

	w, err := worker.New(store, fetcher, cfg, nil)
	if err != nil {
		t.Fatalf("worker.New failed: %v", err)
	}
	g, err := New(w, fetcher, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g, w
}

func TestNew_Validation(t *testing.T) {
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	w, err := worker.New(store, fetcher, testConfig(), nil)
	if err != nil {
		t.Fatalf("worker.New failed: %v", err)
	}

	if _, err := New(nil, fetcher, nil); err == nil {
		t.Error("expected error for nil worker")
	}
	if _, err := New(w, nil, nil); err == nil {
		t.Error("expected error for nil fetcher")
	}
	if _, err := New(w, fetcher, nil); err != nil {
		t.Errorf("valid construction failed: %v", err)
	}
}

func TestServeHTTP_PassthroughBeforeActivation(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	fetcher.Respond("http://app.local/receipts", "live page")

	g, w := newTestGateway(t, store, fetcher, cfg)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/receipts", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "live page" {
		t.Errorf("body = %q, want the live page", rec.Body.String())
	}

	// An inactive worker intercepts nothing, so nothing lands in the cache.
	w.Wait()
	if store.Has(cfg.CacheName) {
		t.Error("no cache namespace may exist before install")
	}
}

func TestStart_InstallsAndActivates(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)

	g, w := newTestGateway(t, store, fetcher, cfg)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.Active() {
		t.Fatal("worker must be active after Start")
	}

	ns := store.Namespace(cfg.CacheName)
	if ns == nil || ns.Len() != len(cfg.Precache) {
		t.Fatalf("expected %d precached assets, got namespace %v", len(cfg.Precache), ns)
	}
}

func TestStart_InstallFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	// No scripted routes: every precache fetch answers 404, failing install.

	g, w := newTestGateway(t, store, fetcher, cfg)

	if err := g.Start(context.Background()); err == nil {
		t.Fatal("Start must fail when install fails")
	}
	if w.Active() {
		t.Error("worker must not activate after a failed install")
	}
}

func TestStart_PruningFailureIsNotFatal(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	store.Seed("receipts-v0", "http://app.local/", testsupport.NewSnapshot("http://app.local/", "old"))
	store.DeleteErr["receipts-v0"] = context.DeadlineExceeded

	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)

	g, w := newTestGateway(t, store, fetcher, cfg)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("pruning failures must not fail Start: %v", err)
	}
	if !w.Active() {
		t.Error("worker must still activate")
	}
}

func TestServeHTTP_InterceptedRequestIsCached(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)
	fetcher.Respond("http://app.local/receipts/42", "receipt detail")

	g, w := newTestGateway(t, store, fetcher, cfg)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/receipts/42", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "receipt detail" {
		t.Errorf("body = %q, want the live detail page", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("Content-Type = %q, upstream headers must be forwarded", got)
	}

	w.Wait()
	snap, err := store.Namespace(cfg.CacheName).Match(context.Background(), "http://app.local/receipts/42")
	if err != nil || snap == nil {
		t.Fatalf("browsed page missing from cache: snap=%v err=%v", snap, err)
	}
}

func TestServeHTTP_PostPassesThrough(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)
	fetcher.Respond("http://app.local/receipts", "created")

	g, w := newTestGateway(t, store, fetcher, cfg)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("POST", "/receipts", strings.NewReader(`{"total":12}`)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	found := false
	for _, call := range fetcher.Fetches() {
		if call == "POST http://app.local/receipts" {
			found = true
		}
	}
	if !found {
		t.Errorf("the POST must reach the network untouched, fetches: %v", fetcher.Fetches())
	}

	w.Wait()
	if snap, _ := store.Namespace(cfg.CacheName).Match(context.Background(), "http://app.local/receipts"); snap != nil {
		t.Error("non-GET responses must never be cached")
	}
}

func TestServeHTTP_APIBypassStaysLive(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)
	fetcher.Respond("http://app.local/api/receipts", `[{"id":1}]`)

	g, w := newTestGateway(t, store, fetcher, cfg)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/api/receipts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	w.Wait()
	if snap, _ := store.Namespace(cfg.CacheName).Match(context.Background(), "http://app.local/api/receipts"); snap != nil {
		t.Error("bypassed data responses must never be cached")
	}

	// Offline, the same call fails outright instead of serving stale data.
	fetcher.SetOffline(true)
	rec = httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/api/receipts", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("offline bypass status = %d, want 502", rec.Code)
	}
}

func TestServeHTTP_OfflineFallback(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)

	g, _ := newTestGateway(t, store, fetcher, cfg)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fetcher.SetOffline(true)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/static/css/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("offline status = %d, want 200 from cache", rec.Code)
	}
	if rec.Body.String() != "asset http://app.local/static/css/style.css" {
		t.Errorf("offline body = %q, want the precached asset", rec.Body.String())
	}
}

func TestServeHTTP_OfflineMissFails(t *testing.T) {
	cfg := testConfig()
	store := testsupport.NewFakeStore()
	fetcher := testsupport.NewScriptedFetcher()
	respondToAssets(fetcher, cfg)

	g, _ := newTestGateway(t, store, fetcher, cfg)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fetcher.SetOffline(true)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/never-visited", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("offline miss status = %d, want 502", rec.Code)
	}
}

// End-to-end over a real HTTP upstream: precache from a live server, take the
// server down, and verify the app shell still loads from cache.
func TestGateway_RealUpstream(t *testing.T) {
	shell := testsupport.LoadFixture(t, testsupport.FixturePath("index.html"))

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(shell)
	})
	mux.HandleFunc("/static/css/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body { margin: 0 }"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := cache.Config{
		CacheName:        "receipts-v1",
		Origin:           srv.URL,
		Precache:         []string{"/", "/static/css/style.css"},
		BypassSubstrings: []string{"/api/"},
	}

	store := testsupport.NewFakeStore()
	fetcher := NewClientFetcher(srv.Client())
	g, _ := newTestGateway(t, store, fetcher, cfg)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Kill the upstream. Every subsequent fetch fails at the dial.
	srv.Close()

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("offline shell status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(shell) {
		t.Error("offline shell body does not match the precached fixture")
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("Content-Type = %q, cached headers must be restored", got)
	}
}
