package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// User operations
	router.HandleFunc("/users", h.HandleCreateUser).Methods("POST")
	router.HandleFunc("/users", h.HandleListUsers).Methods("GET")
	router.HandleFunc("/users/batch", h.HandleBatchCreateUsers).Methods("POST")
	router.HandleFunc("/users/count", h.HandleCountUsers).Methods("GET")

	// User operations (by ID)
	router.HandleFunc("/users/{id}", h.HandleGetUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.HandleUpdateUser).Methods("PATCH") // Partial update
	router.HandleFunc("/users/{id}", h.HandleReplaceUser).Methods("PUT")  // Complete replacement
	router.HandleFunc("/users/{id}", h.HandleDeleteUser).Methods("DELETE")
	router.HandleFunc("/users/{id}/fill", h.HandleFillUser).Methods("PATCH")
	router.HandleFunc("/users/{id}/verify-password", h.HandleVerifyPassword).Methods("POST")

	// User details reference a user
	router.HandleFunc("/user-details", h.HandleCreateUserDetails).Methods("POST")
	router.HandleFunc("/user-details/{id}", h.HandleGetUserDetails).Methods("GET")

	// Items share one base model across per-kind collections
	router.HandleFunc("/items", h.HandleListItems).Methods("GET")
	router.HandleFunc("/items/stream", h.HandleStreamItems).Methods("GET")
	router.HandleFunc("/items/{kind}", h.HandleListItems).Methods("GET")
	router.HandleFunc("/items/{kind}", h.HandleCreateItem).Methods("POST")
}
