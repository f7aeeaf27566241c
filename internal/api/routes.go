package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Today's decision
	api.HandleFunc("/advisory", handler.GetAdvisory).Methods("GET")

	// Rule table
	api.HandleFunc("/rules", handler.GetRules).Methods("GET")
	api.HandleFunc("/rules", handler.PutRules).Methods("PUT")

	// Portfolio and valuation
	api.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/positions", handler.PutPositions).Methods("PUT")
	api.HandleFunc("/valuation", handler.RunValuation).Methods("POST")

	// Trade log
	api.HandleFunc("/trades", handler.GetTrades).Methods("GET")
	api.HandleFunc("/trades", handler.AddTrade).Methods("POST")
	api.HandleFunc("/trades", handler.PutTrades).Methods("PUT")

	// Capital log and performance
	api.HandleFunc("/capital", handler.GetCapital).Methods("GET")
	api.HandleFunc("/capital", handler.PutCapital).Methods("PUT")
	api.HandleFunc("/performance", handler.GetPerformance).Methods("GET")

	return r
}
