package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// CallerContextKey is the context key for the authenticated caller
	CallerContextKey ContextKey = "caller"
)

// AuthenticationMiddleware resolves bearer tokens to tenant-bound callers
type AuthenticationMiddleware struct {
	logger       *logger.Logger
	authSvc      services.AuthenticationService
	errorHandler *services.ErrorHandler
}

// NewAuthenticationMiddleware creates a new authentication middleware
func NewAuthenticationMiddleware(
	logger *logger.Logger,
	authSvc services.AuthenticationService,
	errorHandler *services.ErrorHandler,
) *AuthenticationMiddleware {
	return &AuthenticationMiddleware{
		logger:       logger,
		authSvc:      authSvc,
		errorHandler: errorHandler,
	}
}

// RequireCaller requires a valid bearer token whose profile belongs to a
// tenant. The resolved caller is stored in the request context.
func (m *AuthenticationMiddleware) RequireCaller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := m.authenticate(r)
			if err != nil {
				m.reject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *AuthenticationMiddleware) authenticate(r *http.Request) (*services.Caller, error) {
	token, err := services.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	identity, err := m.authSvc.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	return m.authSvc.ResolveCaller(r.Context(), identity)
}

func (m *AuthenticationMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	classified := m.errorHandler.HandleError(err, map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(classified.StatusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     classified.Message,
		"status":    classified.StatusCode,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetCallerFromContext extracts the caller from the request context
func GetCallerFromContext(ctx context.Context) *services.Caller {
	caller, ok := ctx.Value(CallerContextKey).(*services.Caller)
	if !ok {
		return nil
	}
	return caller
}
