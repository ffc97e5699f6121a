// Package worker implements the offline cache lifecycle: install, activate,
// and fetch interception.
//
// # Overview
//
// A Worker is constructed over two injected capabilities, a cache.Store and
// a cache.Fetcher, plus a cache.Config naming the versioned namespace, the
// precached asset set, and the bypass rules. The three operations map
// directly onto the host lifecycle:
//
//   - Install: fetches every static asset and commits them to the namespace
//     named by the cache version, all-or-nothing. A worker that installed
//     successfully is immediately eligible for activation.
//   - Activate: deletes every namespace that does not match the current
//     version (best-effort, concurrently) and claims the worker's clients.
//   - Fetch: network-first with cache fallback for intercepted requests;
//     non-GET requests and bypassed URLs are never touched.
//
// # Fire-and-Forget Writes
//
// Successful 2xx responses are snapshotted into the cache as a side effect
// of the caller consuming the body. The write runs in a background
// goroutine and is never awaited by the response path; its failure is
// logged and dropped. Wait exposes a way for tests to block until all
// pending writes have settled.
//
// # Concurrency
//
// Fetches are fully independent: the only shared state is the cache
// namespace, and entry puts are atomic per key, so concurrent requests for
// the same resource are last-write-wins with no corruption risk. Install
// always completes before Activate is called by any well-behaved host
// binding; the gateway in package gatewaycache enforces that ordering.
package worker
