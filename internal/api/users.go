package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dehost-labs/dehost/internal/serverdb"
)

// UpsertUserRequest is the body of POST /api/users.
type UpsertUserRequest struct {
	Address string `json:"address"`
	Email   string `json:"email"`
}

// handleUpsertUser creates or refreshes the dashboard user for a wallet address.
func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.UpsertUser(req.Address, req.Email)
	if errors.Is(err, serverdb.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logFor(r.Context()).Error("upsert user", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logFor(r.Context()).Info("user login", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}
