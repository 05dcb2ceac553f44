// Package webhook delivers signed event notifications from the dehost server.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Event names.
const (
	EventPairingVerified    = "pairing.verified"
	EventDeploymentRecorded = "deployment.recorded"
)

const (
	HeaderTimestamp = "X-Dehost-Timestamp"
	HeaderSignature = "X-Dehost-Signature"
)

// Payload is the POST body.
type Payload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Dispatcher posts payloads to a single configured URL.
type Dispatcher struct {
	URL    string
	Secret string
	HTTP   *http.Client
	now    func() time.Time
}

// New returns a dispatcher for url. An empty secret disables signing.
func New(url, secret string) *Dispatcher {
	return &Dispatcher{
		URL:    url,
		Secret: secret,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Send performs a synchronous POST of event with data. Only 2xx counts as delivered.
func (d *Dispatcher) Send(ctx context.Context, event string, data any) error {
	now := d.now().UTC()
	body, err := json.Marshal(Payload{
		Event:     event,
		Timestamp: now.Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dehost-webhook/1")

	ts := strconv.FormatInt(now.Unix(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	if d.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(d.Secret, ts, body))
	}

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", d.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", d.URL, resp.StatusCode)
	}
	return nil
}
