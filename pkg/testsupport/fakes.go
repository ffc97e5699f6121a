package testsupport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-offline-cache/cache"
)

// ErrOffline is the network failure a ScriptedFetcher returns while offline.
// Tests assert on it with errors.Is to verify failures propagate unchanged.
var ErrOffline = errors.New("testsupport: network unreachable")

// FakeStore is an in-memory cache.Store with injectable failures and call
// counting, so tests can verify both the happy path and how the worker
// behaves when the storage layer misbehaves.
type FakeStore struct {
	mu         sync.Mutex
	namespaces map[string]*FakeNamespace
	calls      map[string]int

	// OpenErr, PutErr, and MatchErr fail the corresponding operation on
	// every namespace. DeleteErr fails deletion of specific namespaces only,
	// which the best-effort activation tests rely on.
	OpenErr   error
	PutErr    error
	MatchErr  error
	DeleteErr map[string]error
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		namespaces: make(map[string]*FakeNamespace),
		calls:      make(map[string]int),
		DeleteErr:  make(map[string]error),
	}
}

func (s *FakeStore) track(method string) {
	s.calls[method]++
}

// CallCount returns how many times the named store method was invoked.
func (s *FakeStore) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Open implements cache.Store.Open.
func (s *FakeStore) Open(ctx context.Context, name string) (cache.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("Open")

	if s.OpenErr != nil {
		return nil, s.OpenErr
	}

	ns, ok := s.namespaces[name]
	if !ok {
		ns = &FakeNamespace{name: name, store: s, entries: make(map[string]*cache.Snapshot)}
		s.namespaces[name] = ns
	}
	return ns, nil
}

// DeleteNamespace implements cache.Store.DeleteNamespace.
func (s *FakeStore) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("DeleteNamespace")

	if err := s.DeleteErr[name]; err != nil {
		return false, err
	}

	_, existed := s.namespaces[name]
	delete(s.namespaces, name)
	return existed, nil
}

// ListNamespaces implements cache.Store.ListNamespaces.
func (s *FakeStore) ListNamespaces(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track("ListNamespaces")

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether the named namespace currently exists.
func (s *FakeStore) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.namespaces[name]
	return ok
}

// Namespace returns the named namespace without creating it, or nil.
func (s *FakeStore) Namespace(name string) *FakeNamespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespaces[name]
}

// Seed opens (creating if needed) the namespace and stores snap under key,
// bypassing any injected failure. Use it to arrange pre-cached state.
func (s *FakeStore) Seed(name, key string, snap *cache.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		ns = &FakeNamespace{name: name, store: s, entries: make(map[string]*cache.Snapshot)}
		s.namespaces[name] = ns
	}
	ns.mu.Lock()
	ns.entries[key] = snap
	ns.mu.Unlock()
}

// FakeNamespace is the namespace handle a FakeStore hands out.
type FakeNamespace struct {
	name    string
	store   *FakeStore
	mu      sync.Mutex
	entries map[string]*cache.Snapshot
}

// Name implements cache.Namespace.Name.
func (n *FakeNamespace) Name() string { return n.name }

// Match implements cache.Namespace.Match.
func (n *FakeNamespace) Match(ctx context.Context, key string) (*cache.Snapshot, error) {
	if err := n.store.MatchErr; err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.entries[key], nil
}

// Put implements cache.Namespace.Put.
func (n *FakeNamespace) Put(ctx context.Context, key string, snap *cache.Snapshot) error {
	if err := n.store.PutErr; err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[key] = snap
	return nil
}

// Keys implements cache.Namespace.Keys.
func (n *FakeNamespace) Keys(ctx context.Context) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries.
func (n *FakeNamespace) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// ScriptedFetcher is a cache.Fetcher answering from a fixed route table,
// with an offline switch and per-URL failures. It records every attempted
// fetch so tests can verify which requests actually hit the "network".
type ScriptedFetcher struct {
	mu        sync.Mutex
	responses map[string]scriptedResponse
	failures  map[string]error
	offline   bool
	fetched   []string
}

type scriptedResponse struct {
	status int
	header http.Header
	body   []byte
}

// NewScriptedFetcher creates a fetcher with an empty route table. Unknown
// URLs answer 404, the way a live origin would.
func NewScriptedFetcher() *ScriptedFetcher {
	return &ScriptedFetcher{
		responses: make(map[string]scriptedResponse),
		failures:  make(map[string]error),
	}
}

// Respond registers a 200 text response for the given URL.
func (f *ScriptedFetcher) Respond(url, body string) {
	f.RespondStatus(url, http.StatusOK, body)
}

// RespondStatus registers a response with an explicit status code.
func (f *ScriptedFetcher) RespondStatus(url string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cache.KeyForURL(url)] = scriptedResponse{
		status: status,
		header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		body:   []byte(body),
	}
}

// Fail makes fetches for the given URL return err.
func (f *ScriptedFetcher) Fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[cache.KeyForURL(url)] = err
}

// SetOffline toggles the global network switch. While offline every fetch
// fails with ErrOffline.
func (f *ScriptedFetcher) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Fetch implements cache.Fetcher.
func (f *ScriptedFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := cache.Key(req)

	f.mu.Lock()
	f.fetched = append(f.fetched, req.Method+" "+key)
	offline := f.offline
	failure := f.failures[key]
	resp, scripted := f.responses[key]
	f.mu.Unlock()

	if offline {
		return nil, fmt.Errorf("fetch %s: %w", key, ErrOffline)
	}
	if failure != nil {
		return nil, failure
	}
	if !scripted {
		resp = scriptedResponse{status: http.StatusNotFound, header: http.Header{}, body: []byte("not found")}
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.status, http.StatusText(resp.status)),
		StatusCode:    resp.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.header.Clone(),
		Body:          io.NopCloser(strings.NewReader(string(resp.body))),
		ContentLength: int64(len(resp.body)),
		Request:       req,
	}, nil
}

// FetchCount returns how many fetches were attempted for the given URL,
// regardless of method.
func (f *ScriptedFetcher) FetchCount(url string) int {
	key := cache.KeyForURL(url)
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.fetched {
		if strings.HasSuffix(rec, " "+key) {
			count++
		}
	}
	return count
}

// Fetches returns every attempted fetch as "METHOD url", in order.
func (f *ScriptedFetcher) Fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}
