package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func withReleaseServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := releaseURL
	releaseURL = srv.URL
	t.Cleanup(func() { releaseURL = old })
}

func TestIsDevelopmentVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", true},
		{"unknown", true},
		{"dev", true},
		{"devel", true},
		{"devel+abc123", true},
		{"v0.1.0", false},
		{"1.0.0-beta", false},
		{"develop", false},
		{"DEV", false},
		{"dev1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsDevelopmentVersion(tt.input); got != tt.expected {
				t.Errorf("IsDevelopmentVersion(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUpdateCommand(t *testing.T) {
	tests := []struct {
		version  string
		expected string
	}{
		{"v1.2.3", `go install -ldflags "-X main.Version=v1.2.3" github.com/dehost-labs/dehost@v1.2.3`},
		{"v1.0.0-rc.1", `go install -ldflags "-X main.Version=v1.0.0-rc.1" github.com/dehost-labs/dehost@v1.0.0-rc.1`},
		{"", ""},
		{"v1.2.3; echo pwned", ""},
		{"v1.2.3$(whoami)", ""},
		{"../../.env", ""},
		{"v1.2.3-", ""},
		{"v1.2.3-beta..rc", ""},
		{"v1.2", ""},
		{"v1.2.3.4", ""},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := UpdateCommand(tt.version); got != tt.expected {
				t.Errorf("UpdateCommand(%q) = %q, want %q", tt.version, got, tt.expected)
			}
		})
	}
}

func TestCheckReportsNewerRelease(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.4.0","html_url":"https://github.com/dehost-labs/dehost/releases/tag/v1.4.0"}`))
	})

	res := Check(context.Background(), "v1.3.2")
	if res.Error != nil {
		t.Fatalf("Check: %v", res.Error)
	}
	if !res.HasUpdate || res.LatestVersion != "v1.4.0" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.HasSuffix(res.UpdateURL, "/v1.4.0") {
		t.Errorf("UpdateURL = %q", res.UpdateURL)
	}
}

func TestCheckSkipsDevelopmentBuilds(t *testing.T) {
	called := false
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	res := Check(context.Background(), "devel")
	if called {
		t.Fatal("development build should not query releases")
	}
	if res.HasUpdate || res.Error != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckHTTPError(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	})

	res := Check(context.Background(), "v1.0.0")
	if res.Error == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCheckCachedUsesValidCache(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("valid cache should avoid the network")
	})

	if err := SaveCache(&CacheEntry{
		LatestVersion:  "v1.5.0",
		CurrentVersion: "v1.0.0",
		CheckedAt:      time.Now(),
		HasUpdate:      true,
	}); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	res := CheckCached(context.Background(), "v1.0.0")
	if !res.HasUpdate || res.LatestVersion != "v1.5.0" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckCachedRefreshesExpiredCache(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.0.0"}`))
	})

	if err := SaveCache(&CacheEntry{
		LatestVersion:  "v1.5.0",
		CurrentVersion: "v1.0.0",
		CheckedAt:      time.Now().Add(-7 * time.Hour),
		HasUpdate:      true,
	}); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	res := CheckCached(context.Background(), "v1.0.0")
	if res.HasUpdate {
		t.Fatalf("expected fresh lookup to report up to date, got %+v", res)
	}

	cached, err := LoadCache()
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if cached.LatestVersion != "v1.0.0" || cached.HasUpdate {
		t.Errorf("cache not refreshed: %+v", cached)
	}
}

func TestCheckCachedDoesNotCacheErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := CheckCached(context.Background(), "v1.0.0")
	if res.Error == nil {
		t.Fatal("expected error")
	}
	if _, err := LoadCache(); err == nil {
		t.Error("failed check should not be cached")
	}
}
