package api

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Database string   `json:"database,omitempty"`
	Models   []string `json:"models,omitempty"`
}

// HandleHealth handles GET requests to the health check endpoint. The
// service is unavailable until the models are connected.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	db, err := h.catalog.Registry.Database()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "unavailable",
			Message: err.Error(),
		})
		return
	}

	response := HealthResponse{
		Status:   "healthy",
		Message:  "go-odm is running",
		Database: db.Name(),
	}
	for _, m := range h.catalog.Registry.Models() {
		response.Models = append(response.Models, m.Name())
	}
	writeJSON(w, http.StatusOK, response)
}
