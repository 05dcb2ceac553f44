package api

import (
	"net/http"
	"slices"
)

// corsMiddleware handles CORS for the dashboard routes.
// If no allowed origins are configured, it passes through without setting headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.config.CORSAllowedOrigins) == 0 {
		return false
	}
	return slices.Contains(s.config.CORSAllowedOrigins, "*") || slices.Contains(s.config.CORSAllowedOrigins, origin)
}
