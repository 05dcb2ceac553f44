package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dehost-labs/dehost/internal/serverdb"
	"github.com/dehost-labs/dehost/internal/webhook"
)

// SaveCodeRequest is the body of POST /api/save-code.
type SaveCodeRequest struct {
	Code string `json:"code"`
}

// SaveCodeResponse is the success body of POST /api/save-code. Session is
// returned once, only to the registering CLI.
type SaveCodeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Session string `json:"session"`
}

// IsVerifiedRequest is the body of POST /api/isVerified. When Session is set
// the answer is about that pairing only, not any record sharing the code.
type IsVerifiedRequest struct {
	Code    string `json:"code"`
	Session string `json:"session,omitempty"`
}

// VerifyCodeRequest is the body of POST /api/verify-code.
type VerifyCodeRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

// VerifyCodeResponse is the success body of POST /api/verify-code.
type VerifyCodeResponse struct {
	Status string `json:"status"`
}

// handleSaveCode registers a code generated by the CLI.
func (s *Server) handleSaveCode(w http.ResponseWriter, r *http.Request) {
	var req SaveCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	code := strings.TrimSpace(req.Code)

	vc, err := s.store.RegisterCode(code)
	if errors.Is(err, serverdb.ErrValidation) {
		writeMessage(w, http.StatusBadRequest, "Invalid code", "")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("register code", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to save code", statusError)
		return
	}
	s.metrics.codesRegistered.Inc()

	if err := s.store.InsertPairingEvent(vc.ID, serverdb.PairingEventRegistered, ""); err != nil {
		logFor(r.Context()).Warn("pairing event", "event", serverdb.PairingEventRegistered, "err", err)
	}
	logFor(r.Context()).Info("code registered", "code_id", vc.ID, "expires_at", vc.ExpiresAt)
	writeJSON(w, http.StatusOK, SaveCodeResponse{
		Message: "Code saved successfully",
		Status:  statusSuccess,
		Session: vc.SessionToken,
	})
}

// handleVerifyCode binds the signed-in dashboard user to a pending code.
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Code = strings.TrimSpace(req.Code)

	ctx := withLogAttrs(r.Context(), "user_id", req.UserID, "code_present", req.Code != "")
	log := logFor(ctx)

	if req.UserID == "" || req.Code == "" {
		s.metrics.verifications.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "userId and code are required")
		return
	}

	vc, err := s.store.VerifyCode(req.Code, req.UserID)
	switch {
	case err == nil:
	case errors.Is(err, serverdb.ErrValidation):
		s.metrics.verifications.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "code must be 6 digits")
		return
	case errors.Is(err, serverdb.ErrNotFound):
		s.metrics.verifications.WithLabelValues("not_found").Inc()
		log.Info("verify rejected", "reason", "not_found")
		writeError(w, http.StatusBadRequest, "invalid or unknown code")
		return
	case errors.Is(err, serverdb.ErrExpired):
		s.metrics.verifications.WithLabelValues("expired").Inc()
		s.recordRejection(r, vc, "expired", req.UserID)
		log.Info("verify rejected", "reason", "expired")
		writeError(w, http.StatusBadRequest, "code has expired")
		return
	case errors.Is(err, serverdb.ErrAlreadyVerified):
		s.metrics.verifications.WithLabelValues("already_verified").Inc()
		log.Info("verify rejected", "reason", "already_verified")
		writeError(w, http.StatusConflict, "code already verified")
		return
	default:
		s.metrics.verifications.WithLabelValues("error").Inc()
		log.Error("verify code", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.metrics.verifications.WithLabelValues("verified").Inc()
	meta := fmt.Sprintf(`{"user_id":%q}`, req.UserID)
	if err := s.store.InsertPairingEvent(vc.ID, serverdb.PairingEventVerified, meta); err != nil {
		log.Warn("pairing event", "event", serverdb.PairingEventVerified, "err", err)
	}
	log.Info("code verified", "code_id", vc.ID)
	s.notify(ctx, webhook.EventPairingVerified, map[string]string{"code_id": vc.ID, "user_id": req.UserID})
	writeJSON(w, http.StatusOK, VerifyCodeResponse{Status: statusVerified})
}

func (s *Server) recordRejection(r *http.Request, vc *serverdb.VerificationCode, reason, userID string) {
	if vc == nil {
		return
	}
	meta := fmt.Sprintf(`{"reason":%q,"user_id":%q}`, reason, userID)
	if err := s.store.InsertPairingEvent(vc.ID, serverdb.PairingEventRejected, meta); err != nil {
		logFor(r.Context()).Warn("pairing event", "event", serverdb.PairingEventRejected, "err", err)
	}
}

// handleIsVerified reports whether a code has been verified. The code comes
// from a JSON body on POST or the "code" query parameter on GET; only POST
// carries a session token.
func (s *Server) handleIsVerified(w http.ResponseWriter, r *http.Request) {
	var req IsVerifiedRequest
	if r.Method == http.MethodGet {
		req.Code = r.URL.Query().Get("code")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body", statusError)
		return
	}
	code := strings.TrimSpace(req.Code)
	if len(code) != serverdb.CodeLength {
		s.metrics.statusChecks.WithLabelValues("invalid").Inc()
		writeMessage(w, http.StatusBadRequest, "Invalid code", statusError)
		return
	}

	verified, err := s.codeVerified(code, strings.TrimSpace(req.Session))
	if err != nil {
		s.metrics.statusChecks.WithLabelValues("error").Inc()
		logFor(r.Context()).Error("code status", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error", statusError)
		return
	}
	if !verified {
		s.metrics.statusChecks.WithLabelValues("pending").Inc()
		writeMessage(w, http.StatusInternalServerError, "Code not verified", statusError)
		return
	}
	s.metrics.statusChecks.WithLabelValues("verified").Inc()
	writeMessage(w, http.StatusOK, "Code verified", statusSuccess)
}

// codeVerified checks the pairing behind session when given, otherwise any
// record carrying code. Unknown codes and tokens are simply unverified.
func (s *Server) codeVerified(code, session string) (bool, error) {
	if session == "" {
		verified, err := s.store.CodeStatus(code)
		if errors.Is(err, serverdb.ErrNotFound) {
			return false, nil
		}
		return verified, err
	}
	vc, err := s.store.SessionCode(session)
	if errors.Is(err, serverdb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return vc.IsVerified && vc.Code == code, nil
}
