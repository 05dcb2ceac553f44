package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dehost-labs/dehost/internal/serverdb"
	"github.com/dehost-labs/dehost/internal/webhook"
)

// RecordDeploymentRequest is the body of POST /api/deployments. Session is
// the token the CLI received when it registered its pairing code; it
// identifies the user once that pairing is verified.
type RecordDeploymentRequest struct {
	Session         string `json:"session"`
	Name            string `json:"name"`
	Domain          string `json:"domain"`
	CID             string `json:"cid"`
	DeploymentURL   string `json:"deploymentUrl"`
	TransactionHash string `json:"transactionHash"`
	FilecoinInfo    string `json:"filecoinInfo"`
}

// ListDeploymentsResponse is the body of GET /api/deployments.
type ListDeploymentsResponse struct {
	Deployments []*serverdb.Deployment `json:"deployments"`
}

// handleRecordDeployment stores a deployment made by a paired CLI.
func (s *Server) handleRecordDeployment(w http.ResponseWriter, r *http.Request) {
	var req RecordDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Session = strings.TrimSpace(req.Session)
	if req.Session == "" {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}

	userID, err := s.store.ResolveSession(req.Session)
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusForbidden, "session is not paired")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("resolve session", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx := withLogAttrs(r.Context(), "user_id", userID)
	dep, err := s.store.RecordDeployment(userID, serverdb.DeploymentInput{
		Name:            req.Name,
		Domain:          req.Domain,
		CID:             req.CID,
		DeploymentURL:   req.DeploymentURL,
		TransactionHash: req.TransactionHash,
		FilecoinInfo:    req.FilecoinInfo,
	})
	if errors.Is(err, serverdb.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logFor(ctx).Error("record deployment", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.metrics.deploymentsRecorded.Inc()
	logFor(ctx).Info("deployment recorded", "deployment_id", dep.ID, "webpage_id", dep.WebpageID)
	s.notify(ctx, webhook.EventDeploymentRecorded, dep)
	writeJSON(w, http.StatusCreated, dep)
}

// handleListDeployments lists a user's deployments, newest first.
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	deps, err := s.store.ListDeployments(userID)
	if err != nil {
		logFor(r.Context()).Error("list deployments", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if deps == nil {
		deps = []*serverdb.Deployment{}
	}
	writeJSON(w, http.StatusOK, ListDeploymentsResponse{Deployments: deps})
}
