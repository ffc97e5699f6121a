package cache

import (
	"errors"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the externally meaningful tunables of the offline worker.
// These are the only knobs the original system exposes: a versioned cache
// name, the static asset set guaranteed available offline, and the request
// paths that must always hit the network.
type Config struct {
	// CacheName identifies the cache namespace and doubles as its version
	// tag. It must be bumped whenever Precache changes so that stale
	// namespaces are pruned on the next activation.
	CacheName string

	// Origin is the base URL of the upstream application the worker fronts,
	// e.g. "http://localhost:8080". Precache paths are resolved against it,
	// and the gateway rewrites inbound requests to it.
	Origin string

	// Precache lists the root-relative paths fetched and cached
	// unconditionally at install time, regardless of runtime traffic.
	Precache []string

	// BypassSubstrings lists URL substrings that exempt a request from
	// interception entirely. Dynamic data endpoints live here: they must
	// never be served stale.
	BypassSubstrings []string
}

// DefaultConfig returns the configuration of the receipts application this
// worker was built for: a versioned app-shell cache and a live-only API
// prefix.
func DefaultConfig() Config {
	return Config{
		CacheName: "receipts-v1",
		Origin:    "http://localhost:8080",
		Precache: []string{
			"/",
			"/static/css/style.css",
			"/static/js/app.js",
			"/static/manifest.json",
			"/static/icons/icon-192.png",
		},
		BypassSubstrings: []string{"/api/"},
	}
}

// Validate checks whether the configuration is usable. The worker
// constructor calls it, so an invalid config fails fast instead of
// surfacing later as a broken install.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CacheName, validation.Required),
		validation.Field(&c.Origin, validation.Required, validation.By(validOrigin)),
		validation.Field(&c.Precache, validation.Each(validation.Required, validation.By(rootedPath))),
		validation.Field(&c.BypassSubstrings, validation.Each(validation.Required)),
	)
}

// AssetURLs resolves the precache paths against the configured origin.
func (c Config) AssetURLs() []string {
	base := strings.TrimRight(c.Origin, "/")
	urls := make([]string, 0, len(c.Precache))
	for _, p := range c.Precache {
		urls = append(urls, base+p)
	}
	return urls
}

// Bypassed reports whether the URL contains any configured bypass substring.
func (c Config) Bypassed(rawURL string) bool {
	for _, sub := range c.BypassSubstrings {
		if strings.Contains(rawURL, sub) {
			return true
		}
	}
	return false
}

func validOrigin(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func rootedPath(value interface{}) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return errors.New("must be a root-relative path")
	}
	return nil
}
