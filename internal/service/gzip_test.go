package service

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipFlushStreamsPartialBody(t *testing.T) {
	var flushed []byte
	rec := httptest.NewRecorder()
	h := withGzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"wave":1}`))
		w.(http.Flusher).Flush()
		flushed = append([]byte(nil), rec.Body.Bytes()...)
		_, _ = w.Write([]byte(`{"wave":2}`))
	}))
	req := httptest.NewRequest(http.MethodGet, "/plan", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	h.ServeHTTP(rec, req)

	if !rec.Flushed {
		t.Fatalf("expected the underlying writer to be flushed")
	}
	zr, err := gzip.NewReader(bytes.NewReader(flushed))
	if err != nil {
		t.Fatalf("gzip header not flushed: %v", err)
	}
	part := make([]byte, len(`{"wave":1}`))
	if _, err := io.ReadFull(zr, part); err != nil || string(part) != `{"wave":1}` {
		t.Fatalf("partial body %q: %v", part, err)
	}

	zr, err = gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil || string(body) != `{"wave":1}{"wave":2}` {
		t.Fatalf("body %q: %v", body, err)
	}
}

func TestGzipSkipsEncodedAndEmptyResponses(t *testing.T) {
	for _, tc := range []struct {
		name     string
		encoding string
		status   int
	}{
		{"already encoded", "br", http.StatusOK},
		{"no content", "", http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := withGzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.encoding != "" {
					w.Header().Set("Content-Encoding", tc.encoding)
				}
				w.WriteHeader(tc.status)
			}))
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			h.ServeHTTP(rec, req)
			if got := rec.Header().Get("Content-Encoding"); got != tc.encoding {
				t.Fatalf("Content-Encoding = %q, want %q", got, tc.encoding)
			}
		})
	}
}
