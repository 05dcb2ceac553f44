package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUploadURL  = "https://node.lighthouse.storage/api/v0/add"
	DefaultGatewayURL = "https://gateway.lighthouse.storage/ipfs/"
)

// ErrMissingAPIKey is returned when no Lighthouse API key is configured.
var ErrMissingAPIKey = errors.New("lighthouse API key not found; set LIGHTHOUSE_API_KEY")

// UploadResult is Lighthouse's response to an add request.
type UploadResult struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Lighthouse uploads files to IPFS through the Lighthouse storage API.
type Lighthouse struct {
	APIKey     string
	UploadURL  string
	GatewayURL string
	HTTP       *http.Client
}

// NewLighthouse returns a client for the public Lighthouse endpoints.
func NewLighthouse(apiKey string) (*Lighthouse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return &Lighthouse{
		APIKey:     apiKey,
		UploadURL:  DefaultUploadURL,
		GatewayURL: DefaultGatewayURL,
		HTTP:       &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Upload streams r as a multipart "file" field named name.
func (l *Lighthouse) Upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.UploadURL, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := l.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload to lighthouse: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("lighthouse returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res UploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	if res.Hash == "" {
		return nil, errors.New("invalid or incomplete response from Lighthouse: missing Hash")
	}
	return &res, nil
}

// URL returns the public gateway address for a CID.
func (l *Lighthouse) URL(cid string) string {
	return strings.TrimRight(l.GatewayURL, "/") + "/" + cid
}
