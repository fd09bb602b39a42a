package api

import (
	"encoding/json"
	"net/http"

	"ratelimiter/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional router behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the rate limiting API.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/ratelimit/check", handlers.CheckAndConsume).Methods("POST")
	api.HandleFunc("/ratelimit/check", methodNotAllowedHandler).Methods("GET", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/ratelimit/status", handlers.Status).Methods("GET")

	api.HandleFunc("/config/global", handlers.SetGlobal).Methods("PUT")
	api.HandleFunc("/config/tenants/{tenant_id}/actions/{action_type}", handlers.SetActionLimit).Methods("PUT")
	api.HandleFunc("/config/tenants/{tenant_id}/actions/{action_type}", handlers.DeleteActionLimit).Methods("DELETE")
	api.HandleFunc("/config/tenants/{tenant_id}/clients/{client_id}/actions/{action_type}", handlers.SetClientLimit).Methods("PUT")
	api.HandleFunc("/config/tenants/{tenant_id}/clients/{client_id}/actions/{action_type}", handlers.DeleteClientLimit).Methods("DELETE")
	api.HandleFunc("/config/snapshot", handlers.ConfigSnapshot).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Catch-all for the /api/v1 prefix: 204 for a CORS preflight, 404 for
	// any other request no route above matched.
	api.PathPrefix("").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("method not allowed", models.ErrorCodeInvalidRequest)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods.
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("method not allowed", models.ErrorCodeInvalidRequest)
	json.NewEncoder(w).Encode(errorResp)
}
