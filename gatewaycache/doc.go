// Package gatewaycache is the host-binding layer: it exposes the worker's
// lifecycle and fetch interception as an http.Handler fronting the upstream
// origin.
//
// The binding is a thin adapter, the equivalent of registering lifecycle
// callbacks with a host runtime. It contributes no caching logic:
// it decides only whether a request reaches the worker at all (the worker
// must be active and the request must qualify for interception) and
// otherwise performs the default network handling. Clients connected before
// activation are picked up the moment the worker activates; no reconnect is
// required, which is the claim-clients semantic of the lifecycle.
package gatewaycache
