package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/handlers"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/middleware"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

func createTestLogger() *logger.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &logger.Logger{Logger: log}
}

func newTestServer(t *testing.T, checks map[string]handlers.HealthCheckFunc) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"https://app.example.com"},
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"authorization", "content-type", "idempotency-key"},
			MaxAge:         600,
		},
		Provider: config.ProviderConfig{APIKey: "global-key"},
	}
	log := createTestLogger()
	errorHandler := services.NewErrorHandler(log)

	registry := prometheus.NewRegistry()
	metrics := services.NewMetrics(registry)
	metrics.ActionsTotal.WithLabelValues("list", "success").Inc()

	srv := NewServer(
		cfg,
		log,
		handlers.NewDocumentActionHandler(cfg, log, nil, errorHandler),
		handlers.NewManagementAPIHandler(log, nil, nil, nil, nil, errorHandler),
		handlers.NewHealthHandler(log, checks),
		middleware.NewAuthenticationMiddleware(log, nil, errorHandler),
		middleware.NewCORSMiddleware(cfg, log),
		registry,
	)
	return srv.Handler()
}

func TestServerHealthCarriesSecurityHeaders(t *testing.T) {
	handler := newTestServer(t, map[string]handlers.HealthCheckFunc{
		"database": func(ctx context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerReadinessReportsFailingDependency(t *testing.T) {
	handler := newTestServer(t, map[string]handlers.HealthCheckFunc{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerExposesMetrics(t *testing.T) {
	handler := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "document_actions_total")
}

func TestServerPreflight(t *testing.T) {
	handler := newTestServer(t, nil)

	paths := []string{handlers.DocumentActionPath, "/api/v1/tenant", "/api/v1/folders/f1"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", "POST")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "idempotency-key"))
			assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

			req = httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://evil.example.com")
			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestServerUnknownRoute(t *testing.T) {
	handler := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
