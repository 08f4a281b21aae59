package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/guild-ledger/pkg/response"
)

// NewRouter wires every route behind the logging and CORS middleware.
func NewRouter(ledger *LedgerHandler, loans *LoanHandler, health *HealthHandler, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	// API routes, one database per tenant
	api := router.PathPrefix("/api/v1/tenants/{tenant}").Subrouter()
	ledger.Register(api)
	loans.Register(api)

	return response.CORSMiddleware(response.LoggingMiddleware(logger)(router))
}
