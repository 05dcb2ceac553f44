package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the body for failed dashboard API calls.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the body used by the code registration and status routes.
type messageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusVerified = "verified"
)

// writeError writes {"error": message} with the given HTTP status code.
// message is shown to the client as-is; never pass storage errors here.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeMessage writes {"message": ..., "status": ...} with the given HTTP status code.
func writeMessage(w http.ResponseWriter, status int, message, st string) {
	writeJSON(w, status, messageResponse{Message: message, Status: st})
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}
