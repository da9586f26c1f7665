package httpapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// withCORS mirrors the teacher's internal/handler/middleware.go CORS
// wrapper: permissive, read-only API, no credentials.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip wraps the handler with response compression, exactly the
// teacher's choice of klauspost/compress/gzhttp in
// internal/handler/middleware.go.
func withGzip(next http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper()
	if err != nil {
		return next
	}
	return wrap(next)
}
