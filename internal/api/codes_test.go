package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dehost-labs/dehost/internal/serverdb"
)

func TestSaveCode(t *testing.T) {
	srv, store := newTestServer(t)

	w := doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "482913"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[SaveCodeResponse](t, w)
	if body.Status != statusSuccess || body.Message == "" || !strings.HasPrefix(body.Session, "dhs_") {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, err := store.SessionCode(body.Session); err != nil {
		t.Fatalf("session not stored: %v", err)
	}

	verified, err := store.CodeStatus("482913")
	if err != nil {
		t.Fatalf("code status: %v", err)
	}
	if verified {
		t.Fatal("new code must start unverified")
	}
}

func TestSaveCodeInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"short", SaveCodeRequest{Code: "123"}},
		{"long", SaveCodeRequest{Code: "1234567"}},
		{"empty", SaveCodeRequest{}},
		{"not json", "{"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(srv, "POST", "/api/save-code", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestSaveCodeRecordsEvent(t *testing.T) {
	srv, store := newTestServer(t)

	doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "555000"})
	expired, _ := store.ExpiredPendingCodes()
	if len(expired) != 0 {
		t.Fatalf("fresh code reported expired: %v", expired)
	}

	// Look the record up through a verification to get its ID.
	vc, err := store.VerifyCode("555000", "u_1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	events, err := store.ListPairingEvents(vc.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != serverdb.PairingEventRegistered {
		t.Fatalf("expected one registered event, got %+v", events)
	}
}

// Scenario: register, verify once, verify again, check status.
func TestVerifyCodeFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "482913"}); w.Code != http.StatusOK {
		t.Fatalf("save: %d", w.Code)
	}

	w := doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "482913"})
	if w.Code != http.StatusOK {
		t.Fatalf("first verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody[VerifyCodeResponse](t, w); body.Status != "verified" {
		t.Fatalf("expected status verified, got %+v", body)
	}

	w = doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u2", Code: "482913"})
	if w.Code != http.StatusConflict {
		t.Fatalf("second verify: expected 409, got %d", w.Code)
	}
	if body := decodeBody[errorResponse](t, w); body.Error != "code already verified" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	w = doRequest(srv, "POST", "/api/isVerified", SaveCodeRequest{Code: "482913"})
	if w.Code != http.StatusOK {
		t.Fatalf("isVerified: expected 200, got %d", w.Code)
	}
	if body := decodeBody[messageResponse](t, w); body.Status != statusSuccess {
		t.Fatalf("unexpected body: %+v", body)
	}

	w = doRequest(srv, "GET", "/api/isVerified?code=482913", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET isVerified: expected 200, got %d", w.Code)
	}
}

// Scenario: register, let 11 minutes pass, verify must fail as expired.
func TestVerifyCodeExpiredOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Now().Truncate(time.Second)
	store.SetClock(func() time.Time { return start })

	doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "482913"})

	store.SetClock(func() time.Time { return start.Add(11 * time.Minute) })
	w := doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "482913"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeBody[errorResponse](t, w); body.Error != "code has expired" {
		t.Fatalf("unexpected error: %+v", body)
	}

	w = doRequest(srv, "POST", "/api/isVerified", SaveCodeRequest{Code: "482913"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unverified code, got %d", w.Code)
	}
	body := decodeBody[messageResponse](t, w)
	if body.Message != "Code not verified" || body.Status != statusError {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestVerifyCodeBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"missing user", VerifyCodeRequest{Code: "123456"}, "userId and code are required"},
		{"missing code", VerifyCodeRequest{UserID: "u1"}, "userId and code are required"},
		{"short code", VerifyCodeRequest{UserID: "u1", Code: "12"}, "code must be 6 digits"},
		{"unknown code", VerifyCodeRequest{UserID: "u1", Code: "999999"}, "invalid or unknown code"},
		{"bad json", "{", "invalid request body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(srv, "POST", "/api/verify-code", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if body := decodeBody[errorResponse](t, w); body.Error != tc.wantErr {
				t.Fatalf("expected error %q, got %q", tc.wantErr, body.Error)
			}
		})
	}
}

func TestVerifyCodeStorageFailure(t *testing.T) {
	srv, store := newTestServer(t)
	store.Close()

	w := doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "123456"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeBody[errorResponse](t, w)
	if body.Error != "internal server error" {
		t.Fatalf("storage detail leaked to client: %q", body.Error)
	}
}

func TestVerifyCodeNeverLogsCode(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv, _ := newTestServer(t)
	doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "731904"})
	doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "731904"})
	doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "731904"})
	doRequest(srv, "GET", "/api/isVerified?code=731904", nil)

	out := buf.String()
	if strings.Contains(out, "731904") {
		t.Fatalf("raw code appeared in logs:\n%s", out)
	}
	if !strings.Contains(out, `"user_id":"u1"`) || !strings.Contains(out, `"code_present":true`) {
		t.Fatalf("expected user_id and code_present in logs:\n%s", out)
	}
}

func TestIsVerifiedUnknownAndInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "POST", "/api/isVerified", SaveCodeRequest{Code: "000001"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unknown code: expected 500, got %d", w.Code)
	}

	w = doRequest(srv, "GET", "/api/isVerified?code=12", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid code: expected 400, got %d", w.Code)
	}

	w = doRequest(srv, "GET", "/api/isVerified", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing code: expected 400, got %d", w.Code)
	}
}

func TestVerifyCodeExpiredRecordsRejection(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Now().Truncate(time.Second)
	store.SetClock(func() time.Time { return start })
	doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "246810"})

	store.SetClock(func() time.Time { return start.Add(time.Hour) })
	doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "u1", Code: "246810"})

	expired, err := store.ExpiredPendingCodes()
	if err != nil || len(expired) != 1 {
		t.Fatalf("expected one expired code, got %v (err %v)", expired, err)
	}
	events, err := store.ListPairingEvents(expired[0].ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[1].EventType != serverdb.PairingEventRejected {
		t.Fatalf("expected registered then rejected, got %+v", events)
	}
}

// Two pairings share one code value; each session must only see its own.
func TestIsVerifiedBySession(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Now().Truncate(time.Second)
	store.SetClock(func() time.Time { return start })

	first := decodeBody[SaveCodeResponse](t, doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "482913"}))
	doRequest(srv, "POST", "/api/verify-code", VerifyCodeRequest{UserID: "alice", Code: "482913"})

	store.SetClock(func() time.Time { return start.Add(time.Hour) })
	second := decodeBody[SaveCodeResponse](t, doRequest(srv, "POST", "/api/save-code", SaveCodeRequest{Code: "482913"}))

	check := func(session string) int {
		return doRequest(srv, "POST", "/api/isVerified", IsVerifiedRequest{Code: "482913", Session: session}).Code
	}
	if got := check(first.Session); got != http.StatusOK {
		t.Errorf("first session: expected 200, got %d", got)
	}
	if got := check(second.Session); got != http.StatusInternalServerError {
		t.Errorf("pending second session: expected 500, got %d", got)
	}
	if got := check("dhs_unknown"); got != http.StatusInternalServerError {
		t.Errorf("unknown session: expected 500, got %d", got)
	}
	if got := doRequest(srv, "POST", "/api/isVerified", IsVerifiedRequest{Code: "111111", Session: first.Session}).Code; got != http.StatusInternalServerError {
		t.Errorf("session with another code: expected 500, got %d", got)
	}
}
