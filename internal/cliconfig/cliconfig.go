// Package cliconfig persists the dehost CLI's settings and paired session
// under ~/.config/dehost.
package cliconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the global CLI config stored at ~/.config/dehost/config.json.
type Config struct {
	ServerURL    string `json:"server_url,omitempty"`
	CallbackPort int    `json:"callback_port,omitempty"`
}

// Session records a completed pairing at ~/.config/dehost/session.json.
// Token is the opaque session the server issued for this pairing and is
// what deployments are attributed by. Code is kept for display only.
type Session struct {
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	ServerURL string    `json:"server_url"`
	PairedAt  time.Time `json:"paired_at"`
}

const (
	DefaultServerURL    = "http://localhost:3000"
	DefaultCallbackPort = 4000
)

// ConfigDir returns ~/.config/dehost, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "dehost")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

const (
	configFile  = "config.json"
	sessionFile = "session.json"
)

// readJSON decodes name from the config dir into v. ok is false when the
// file does not exist.
func readJSON(name string, v any) (ok bool, err error) {
	dir, err := ConfigDir()
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// writeJSON replaces name in the config dir via a rename so readers never
// see a partial file.
func writeJSON(name string, v any, perm os.FileMode) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// LoadConfig reads the global config. A missing file yields an empty Config.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := readJSON(configFile, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	return writeJSON(configFile, cfg, 0644)
}

// LoadSession reads the paired session, or nil when not logged in.
func LoadSession() (*Session, error) {
	var s Session
	ok, err := readJSON(sessionFile, &s)
	if !ok {
		return nil, err
	}
	return &s, nil
}

// SaveSession writes the paired session readable only by the owner.
func SaveSession(s *Session) error {
	return writeJSON(sessionFile, s, 0600)
}

// ClearSession removes the session. A missing file is not an error.
func ClearSession() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// validPort reports whether n is a usable TCP port.
func validPort(n int) bool { return n > 0 && n < 65536 }

// GetServerURL returns the web backend URL.
// Priority: DEHOST_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("DEHOST_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.ServerURL != "" {
		return strings.TrimRight(cfg.ServerURL, "/")
	}
	return DefaultServerURL
}

// GetCallbackPort returns the loopback port for the login callback.
// Priority: DEHOST_CALLBACK_PORT env > config.json > 4000.
func GetCallbackPort() int {
	if v := os.Getenv("DEHOST_CALLBACK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && validPort(n) {
			return n
		}
	}
	cfg, err := LoadConfig()
	if err == nil && validPort(cfg.CallbackPort) {
		return cfg.CallbackPort
	}
	return DefaultCallbackPort
}
