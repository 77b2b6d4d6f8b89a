package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers every serve-mode route on r.
func RegisterRoutes(h *Handler, r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Sign-in
	r.HandleFunc("/google/sucesso", h.OAuthLanding).Methods("GET")
	r.HandleFunc("/api/session", h.GetSession).Methods("GET")
	r.HandleFunc("/api/session/login", h.Login).Methods("GET")
	r.HandleFunc("/api/session/logout", h.Logout).Methods("POST")
	r.HandleFunc("/api/invites/verify", h.VerifyInvite).Methods("GET")

	// Request lifecycle
	r.HandleFunc("/api/central", h.Central).Methods("GET")
	r.HandleFunc("/api/requests", h.CreateRequest).Methods("POST")
	r.HandleFunc("/api/requests/bulk-date", h.BulkDate).Methods("PUT")
	r.HandleFunc("/api/requests/{id}", h.GetRequest).Methods("GET")
	r.HandleFunc("/api/requests/{id}", h.DeleteRequest).Methods("DELETE")
	r.HandleFunc("/api/requests/{id}/validate", h.ValidateRequest).Methods("POST")
	r.HandleFunc("/api/requests/{id}/correct", h.CorrectRequest).Methods("POST")
	r.HandleFunc("/api/requests/{id}/revert", h.RevertRequest).Methods("POST")

	// Views
	r.HandleFunc("/api/dashboard", h.Dashboard).Methods("GET")
	r.HandleFunc("/api/ranking", h.Ranking).Methods("GET")
	r.HandleFunc("/api/reports", h.Report).Methods("GET")
	r.HandleFunc("/api/goals/progress", h.GoalsProgress).Methods("GET")

	// Push and metrics
	r.Handle("/api/events/ws", h.hub.Handler(h.channel))
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	} else {
		r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "metrics disabled")
		}).Methods("GET")
	}
}
