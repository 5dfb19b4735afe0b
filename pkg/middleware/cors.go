package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/freshbulk/storefront/config"
)

type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// AllowCredentials lets browsers send the session cookie. The matched
	// origin is echoed back since "*" is not allowed with credentials.
	AllowCredentials bool
	MaxAge           int
}

// CORSFromConfig reads CORS_ORIGINS and allows credentials.
func CORSFromConfig() CORSOptions {
	return CORSOptions{
		AllowedOrigins:   config.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")
	wildcard := slices.Contains(opts.AllowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin != "" && (wildcard || slices.Contains(opts.AllowedOrigins, origin)) {
				allow := origin
				if wildcard && !opts.AllowCredentials {
					allow = "*"
				}
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if opts.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if opts.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
