// Package testsupport provides test doubles and fixture helpers shared by
// the package-level test suites: an in-memory fake store with injectable
// failures, a scripted network fetcher with an offline switch, and small
// file-fixture utilities.
package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-offline-cache/cache"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t *testing.T, path string, dest interface{}) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata
// directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// NewSnapshot builds a 200 text/html snapshot for the given URL, the
// arrange step of most cache tests.
func NewSnapshot(url, body string) *cache.Snapshot {
	return &cache.Snapshot{
		URL:       url,
		Status:    http.StatusOK,
		Header:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:      []byte(body),
		FetchedAt: time.Now().UTC(),
	}
}

// ReadBody drains and closes a response body, failing the test on error.
// Nearly every fetch assertion needs the body and the cleanup in one step.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
