package service

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// gzipResponseWriter compresses JSON and text bodies. Bodies that already
// carry a Content-Encoding, such as gzip-encoded /metrics scrapes, pass
// through untouched.
type gzipResponseWriter struct {
	http.ResponseWriter
	writer      *gzip.Writer
	wroteHeader bool
	compress    bool
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true
	if shouldCompress(g.ResponseWriter.Header(), code) {
		g.compress = true
		g.Header().Set("Content-Encoding", "gzip")
		g.Header().Del("Content-Length")
		g.writer = gzipWriters.Get().(*gzip.Writer)
		g.writer.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(code)
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.compress {
		return g.writer.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

// Flush pushes buffered compressed bytes to the client.
func (g *gzipResponseWriter) Flush() {
	if g.compress && g.writer != nil {
		_ = g.writer.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter { return g.ResponseWriter }

func (g *gzipResponseWriter) Close() error {
	if g.writer == nil {
		return nil
	}
	err := g.writer.Close()
	g.writer.Reset(io.Discard)
	gzipWriters.Put(g.writer)
	g.writer = nil
	return err
}

func withGzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		gzw := &gzipResponseWriter{ResponseWriter: w}
		defer func() { _ = gzw.Close() }()
		next.ServeHTTP(gzw, r)
	})
}

func shouldCompress(h http.Header, status int) bool {
	if status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	if h.Get("Content-Encoding") != "" {
		return false
	}
	contentType := strings.ToLower(h.Get("Content-Type"))
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/")
}
