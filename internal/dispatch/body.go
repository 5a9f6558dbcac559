package dispatch

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// decompressReader wraps the response body according to Content-Encoding.
// The returned closer closes both the wrapper and the underlying body.
func decompressReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return &wrappedBody{reader: gz, body: resp.Body}, nil
	case "br":
		return &wrappedBody{reader: io.NopCloser(brotli.NewReader(resp.Body)), body: resp.Body}, nil
	default:
		return resp.Body, nil
	}
}

type wrappedBody struct {
	reader io.ReadCloser
	body   io.ReadCloser
}

func (w *wrappedBody) Read(p []byte) (int, error) { return w.reader.Read(p) }

func (w *wrappedBody) Close() error {
	w.reader.Close()
	return w.body.Close()
}

// readUpstreamBody reads and decompresses the response body. A non-zero limit
// caps the bytes read, used for error bodies.
func readUpstreamBody(resp *http.Response, limit int64) ([]byte, error) {
	rc, err := decompressReader(resp)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit)
	}
	return io.ReadAll(r)
}
