package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig holds configuration for cross-origin access.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API. "*" allows
	// any origin, which is the default: the dashboard is a static page
	// served from wherever the operator hosts it.
	AllowedOrigins []string
}

// CORS returns a middleware that answers preflight requests and attaches
// cross-origin headers for the dashboard.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowAny := len(origins) == 1 && origins[0] == "*"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := ""
			switch {
			case allowAny:
				allowed = "*"
			case origin != "":
				for _, o := range origins {
					if strings.EqualFold(o, origin) {
						allowed = origin
						break
					}
				}
			}

			if allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				if !allowAny {
					w.Header().Add("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
