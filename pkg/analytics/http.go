package analytics

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/analytics/overview", h.handleOverview).Methods(http.MethodGet)
	router.HandleFunc("/analytics/admin-data", h.handleAdminData).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.Overview())
}

func (h *HTTPHandler) handleAdminData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.AdminData())
}
