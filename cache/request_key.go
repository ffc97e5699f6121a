package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key derives the cache key identifying req. Keys must be stable: two
// requests for the same resource have to map to the same key across process
// restarts, or offline lookups would miss entries written by a previous run.
// Only the request URL participates: the worker never caches anything but
// GETs, so the method carries no information.
func Key(req *http.Request) string {
	return KeyForURL(req.URL.String())
}

// KeyForURL normalizes a raw URL into its cache-key form:
//
//   - scheme and host are lowercased
//   - the default port for the scheme is stripped
//   - the fragment is dropped (it never reaches the server)
//   - an empty path becomes "/"
//   - the query string is preserved verbatim, since distinct queries are
//     distinct resources
//
// An unparseable URL is returned as-is; a degenerate key is still a usable
// key, and stability matters more here than strictness.
func KeyForURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if host, port, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}

	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
