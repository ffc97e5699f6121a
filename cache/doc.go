// Package cache defines the contracts the offline worker is built against.
//
// # Overview
//
// The package exports the capabilities the worker consumes rather than any
// concrete machinery:
//
//   - Store / Namespace: a named key-value cache of request keys to response
//     snapshots, with lazy namespace creation, per-entry atomic puts, and
//     whole-namespace deletion
//   - Fetcher: the network as an injected capability mapping a request to a
//     live response or a failure
//   - Snapshot: the stored response representation, with a msgpack binary
//     codec shared by every store adapter
//   - Config: the worker's tunables, namely the versioned cache name, the
//     precached asset set, and the bypass rules
//
// Modeling the cache and the network as explicit dependencies keeps the
// worker's three operations (install, activate, fetch) pure enough to test
// against in-memory fakes; nothing in this module reaches for an ambient
// singleton.
//
// # Request Keys
//
// Key and KeyForURL derive the cache key identifying a request. Keys are
// normalized URLs, stable across process restarts: an entry written by one
// run must be findable by the next, or offline fallback would silently stop
// working after a redeploy.
//
// # Namespace Versioning
//
// A namespace name is a version tag. The worker installs into the namespace
// named by Config.CacheName and, on activation, deletes every namespace with
// any other name. At most one current namespace exists at a time; entries
// inside it have no TTL or eviction policy of their own and live until the
// namespace itself is deleted.
//
// # See Also
//
// The worker package implements the lifecycle semantics on top of these
// contracts. Store adapters live in internal/cacheinfra (in-memory) and
// internal/bunstore (SQLite/Postgres).
package cache
