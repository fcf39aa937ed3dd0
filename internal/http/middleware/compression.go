package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// DefaultCompressionLevel is used when no level is configured.
const DefaultCompressionLevel = 5

// compressibleTypes are the content types that get compressed.
var compressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"text/html",
	"text/plain",
}

// Compress returns a response compression middleware for JSON and HTML that
// prefers brotli over gzip and deflate when the client accepts it.
func Compress(level int) func(http.Handler) http.Handler {
	if level <= 0 {
		level = DefaultCompressionLevel
	}

	compressor := chimiddleware.NewCompressor(level, compressibleTypes...)
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})

	return compressor.Handler
}
