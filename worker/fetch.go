package worker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-cache/cache"
)

// Fetch applies the network-first strategy to an intercepted request: one
// network attempt, no retries. A successful 2xx response has its body
// captured as the caller consumes it and is written to the cache in the
// background; the live response is returned without waiting for that write.
// A failed network attempt falls back to the cache; if the cache misses
// too, the original network error is returned and the load fails exactly as
// it would without a worker.
//
// Callers are expected to have consulted Intercepts first; Fetch itself
// applies no bypass rules.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := cache.Key(req)

	resp, err := w.fetcher.Fetch(ctx, req)
	if err != nil {
		return w.fallback(ctx, req, key, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		w.captureResponse(key, resp)
	}

	fetchesTotal.WithLabelValues("network").Inc()
	return resp, nil
}

// fallback serves the cached snapshot for key, or surfaces the network
// error when there is none.
func (w *Worker) fallback(ctx context.Context, req *http.Request, key string, netErr error) (*http.Response, error) {
	ns, err := w.store.Open(ctx, w.cfg.CacheName)
	if err != nil {
		w.log.Warn("cache unavailable during offline fallback",
			zap.String("key", key),
			zap.Error(err))
		fetchesTotal.WithLabelValues("miss").Inc()
		return nil, netErr
	}

	snap, err := ns.Match(ctx, key)
	if err != nil {
		w.log.Warn("cache lookup failed during offline fallback",
			zap.String("key", key),
			zap.Error(err))
		fetchesTotal.WithLabelValues("miss").Inc()
		return nil, netErr
	}
	if snap == nil {
		fetchesTotal.WithLabelValues("miss").Inc()
		return nil, netErr
	}

	fetchesTotal.WithLabelValues("cache").Inc()
	w.log.Debug("served from cache",
		zap.String("key", key),
		zap.Time("fetched_at", snap.FetchedAt))
	return snap.Response(req), nil
}

// captureResponse swaps the response body for a tee that records the bytes
// the caller reads. Once the body has been consumed to EOF, a background
// goroutine snapshots it into the cache. A body abandoned before EOF is
// never cached: the snapshot would be truncated.
func (w *Worker) captureResponse(key string, resp *http.Response) {
	resp.Body = &captureBody{
		rc:     resp.Body,
		worker: w,
		key:    key,
		status: resp.StatusCode,
		header: resp.Header.Clone(),
	}
}

// captureBody tees a response body into a buffer and schedules the cache
// write when the body reaches EOF.
type captureBody struct {
	rc     io.ReadCloser
	worker *Worker
	key    string
	status int
	header http.Header

	buf  bytes.Buffer
	once sync.Once
}

// Read implements io.Reader.
func (b *captureBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.buf.Write(p[:n])
	}
	if err == io.EOF {
		b.scheduleWrite()
	}
	return n, err
}

// Close implements io.Closer. Closing before EOF abandons the capture;
// a client that walked away mid-body also abandons the cache write, which
// is acceptable by contract.
func (b *captureBody) Close() error {
	return b.rc.Close()
}

// scheduleWrite spawns the fire-and-forget cache write. The write is
// detached from the request context on purpose: response delivery must not
// wait on it, and the request may already be finished when it runs. Write
// failures (quota, backend trouble) are logged and dropped; they must
// never affect the response the caller already has.
func (b *captureBody) scheduleWrite() {
	b.once.Do(func() {
		snap := &cache.Snapshot{
			URL:       b.key,
			Status:    b.status,
			Header:    b.header,
			Body:      append([]byte(nil), b.buf.Bytes()...),
			FetchedAt: time.Now().UTC(),
		}

		w := b.worker
		w.writes.Add(1)
		go func() {
			defer w.writes.Done()

			ctx := context.Background()
			ns, err := w.store.Open(ctx, w.cfg.CacheName)
			if err == nil {
				err = ns.Put(ctx, b.key, snap)
			}
			if err != nil {
				droppedWritesTotal.Inc()
				w.log.Warn("dropping background cache write",
					zap.String("key", b.key),
					zap.Error(err))
			}
		}()
	})
}
