// Package dehostclient is the CLI's HTTP client for the dehost web backend.
package dehostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dehost-labs/dehost/internal/pairing"
)

// ErrNotPaired is returned when the server does not accept the session token
// as a verified pairing.
var ErrNotPaired = errors.New("cli session is not paired")

var _ pairing.Registrar = (*Client)(nil)

// Client is an HTTP client for the dehost web backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types (mirror internal/api, independently defined) ---

type codeRequest struct {
	Code    string `json:"code"`
	Session string `json:"session,omitempty"`
}

type saveCodeResponse struct {
	Session string `json:"session"`
}

type verifyRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

// messageBody is the shape of the save-code and isVerified responses.
type messageBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// DeploymentRequest is the body for POST /api/deployments. Session is the
// token returned when the pairing code was registered.
type DeploymentRequest struct {
	Session         string `json:"session"`
	Name            string `json:"name"`
	Domain          string `json:"domain"`
	CID             string `json:"cid"`
	DeploymentURL   string `json:"deploymentUrl"`
	TransactionHash string `json:"transactionHash,omitempty"`
	FilecoinInfo    string `json:"filecoinInfo,omitempty"`
}

// DeploymentResponse is a recorded deployment.
type DeploymentResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	WebpageID     string `json:"webpage_id"`
	DeploymentURL string `json:"deployment_url"`
	DeployedAt    string `json:"deployed_at"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.StatusCode, e.Message)
}

// PairingURL returns the dashboard page the browser is sent to during login.
func (c *Client) PairingURL() string {
	return c.BaseURL + "/cliauth"
}

// HealthCheck reports whether the server and its database are reachable.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveCode registers a freshly generated code and returns the session token
// the server bound to it. A 400 from the server is reported as a
// *pairing.ValidationError.
func (c *Client) SaveCode(ctx context.Context, code string) (string, error) {
	var resp saveCodeResponse
	err := c.do(ctx, "POST", "/api/save-code", codeRequest{Code: code}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return "", &pairing.ValidationError{Field: "code", Reason: apiErr.Message}
	}
	if err != nil {
		return "", err
	}
	if resp.Session == "" {
		return "", errors.New("server did not issue a session token")
	}
	return resp.Session, nil
}

// IsVerified reports whether the pairing behind session (registered with
// code) has been verified. The server answers 500 "Code not verified" for
// pending or unknown pairings; that is reported as (false, nil).
func (c *Client) IsVerified(ctx context.Context, code, session string) (bool, error) {
	var body messageBody
	err := c.do(ctx, "POST", "/api/isVerified", codeRequest{Code: code, Session: session}, &body)
	if err == nil {
		return body.Status == "success", nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusBadRequest:
			return false, &pairing.ValidationError{Field: "code", Reason: apiErr.Message}
		case apiErr.StatusCode == http.StatusInternalServerError && apiErr.Message == "Code not verified":
			return false, nil
		}
		return false, err
	}
	return false, &pairing.TransportError{Op: pairing.OpStatus, Err: err}
}

// VerifyCode performs the dashboard's verification call, binding userID to code.
// Errors map onto the pairing taxonomy.
func (c *Client) VerifyCode(ctx context.Context, userID, code string) error {
	err := c.do(ctx, "POST", "/api/verify-code", verifyRequest{UserID: userID, Code: code}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", pairing.ErrAlreadyVerified, apiErr.Message)
	case http.StatusBadRequest:
		switch apiErr.Message {
		case "code has expired":
			return fmt.Errorf("%w: %s", pairing.ErrExpired, apiErr.Message)
		case "invalid or unknown code":
			return fmt.Errorf("%w: %s", pairing.ErrNotFound, apiErr.Message)
		}
		return &pairing.ValidationError{Field: "code", Reason: apiErr.Message}
	}
	return err
}

// RecordDeployment attributes a deployment to the user that verified the
// pairing behind req.Session.
func (c *Client) RecordDeployment(ctx context.Context, req DeploymentRequest) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	err := c.do(ctx, "POST", "/api/deployments", req, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrNotPaired, apiErr.Message)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// parseAPIError reads either {"error": ...} or {"message": ...} bodies.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
