package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is a stored copy of an HTTP response: the value side of a cache
// namespace entry. The body is held in full; the worker only snapshots
// responses it has seen to completion.
type Snapshot struct {
	URL       string      `msgpack:"url"`
	Status    int         `msgpack:"status"`
	Header    http.Header `msgpack:"header"`
	Body      []byte      `msgpack:"body"`
	FetchedAt time.Time   `msgpack:"fetched_at"`
}

// MarshalBinary encodes the snapshot with msgpack. Both store adapters use
// this as the on-wire/on-disk representation.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	// Marshal through an alias type so msgpack encodes the struct fields
	// instead of re-invoking this method via encoding.BinaryMarshaler.
	type snapshot Snapshot
	return msgpack.Marshal((*snapshot)(s))
}

// UnmarshalSnapshot decodes a snapshot previously encoded by MarshalBinary.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Response materializes the snapshot as an *http.Response suitable for
// returning in place of a live network response. The body is an independent
// reader over the stored bytes, so a snapshot can be served any number of
// times.
func (s *Snapshot) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.Status, http.StatusText(s.Status)),
		StatusCode:    s.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}
