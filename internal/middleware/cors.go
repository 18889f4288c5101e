package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
)

// CORSMiddleware answers preflight requests and tags responses for origins
// on the allow-list. Preflights from any other origin are refused.
type CORSMiddleware struct {
	cors   config.CORSConfig
	logger *logger.Logger
}

// NewCORSMiddleware creates a CORS middleware from configuration
func NewCORSMiddleware(cfg *config.Config, logger *logger.Logger) *CORSMiddleware {
	return &CORSMiddleware{cors: cfg.CORS, logger: logger}
}

// Handler wraps next with the CORS policy
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := m.cors.IsOriginAllowed(origin)

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.logger.WithFields(map[string]interface{}{
				"origin": origin,
				"path":   r.URL.Path,
			}).Warn("Rejected preflight from unknown origin")
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.Header().Set("Access-Control-Allow-Methods", strings.Join(m.cors.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(m.cors.AllowedHeaders, ", "))
		if m.cors.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.cors.MaxAge))
		}
		w.WriteHeader(http.StatusOK)
	})
}

// SecurityHeaders adds the response headers every JSON endpoint carries
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
