package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS applies the allowed origin policy. The web client authenticates with a
// bearer token, never cookies, so credentials stay disabled and "*" is safe.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(corsOptions(origins)).Handler
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader, "If-Match", requestIDHeader},
		// ETag feeds If-Match; the rest let the client page, retry and report ids
		ExposedHeaders: []string{"ETag", "X-Next-Cursor", requestIDHeader, replayedHeader, "Retry-After"},
		MaxAge:         300,
	}
}
