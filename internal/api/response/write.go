package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data with the given status. Matchmaking state moves between
// requests, so no response may be cached.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 response
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response for a new registration or queue entry
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}
