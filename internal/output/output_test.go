package output

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

// TestFormatTimeAgoJustNow tests times less than a minute ago
func TestFormatTimeAgoJustNow(t *testing.T) {
	now := time.Now()
	tests := []time.Time{
		now,
		now.Add(-30 * time.Second),
		now.Add(-59 * time.Second),
	}

	for _, tm := range tests {
		result := FormatTimeAgo(tm)
		if result != "just now" {
			t.Errorf("FormatTimeAgo(%v) = %q, want 'just now'", tm, result)
		}
	}
}

// TestFormatTimeAgoRanges tests each bucket once
func TestFormatTimeAgoRanges(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{90 * time.Second, "1m ago"},
		{45 * time.Minute, "45m ago"},
		{90 * time.Minute, "1h ago"},
		{5 * time.Hour, "5h ago"},
		{36 * time.Hour, "1d ago"},
		{3 * 24 * time.Hour, "3d ago"},
	}
	for _, tc := range tests {
		if got := FormatTimeAgo(now.Add(-tc.ago)); got != tc.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}

	old := now.Add(-10 * 24 * time.Hour)
	if got := FormatTimeAgo(old); got != old.Format("2006-01-02") {
		t.Errorf("old date: got %q", got)
	}
}

// TestBanner checks the tagline and version are present
func TestBanner(t *testing.T) {
	b := Banner("v1.2.3")
	if !strings.Contains(b, "Deploy static sites to IPFS") {
		t.Error("banner missing tagline")
	}
	if !strings.Contains(b, "v1.2.3") {
		t.Error("banner missing version")
	}
	if strings.Contains(Banner(""), "  v") {
		t.Error("empty version should not render")
	}
}

// TestCodeContainsDigits checks the boxed code keeps its digits intact
func TestCodeContainsDigits(t *testing.T) {
	if !strings.Contains(Code("482913"), "482913") {
		t.Error("code box lost the code")
	}
}

// TestKeyValueAligns checks values start at the same column
func TestKeyValueAligns(t *testing.T) {
	out := KeyValue([][2]string{{"cid", "bafy"}, {"framework", "React"}})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if strings.Index(lines[0], "bafy") != strings.Index(lines[1], "React") {
		t.Errorf("values not aligned:\n%s", out)
	}
}

func TestMessagesGoToTheRightStream(t *testing.T) {
	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = os.Stdout, os.Stderr })

	Info("deployed %d files", 3)
	Success("done")
	Error("upload failed: %s", "timeout")
	Warning("no .env")

	if got := out.String(); !strings.Contains(got, "deployed 3 files\n") || !strings.Contains(got, "done") {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.String(); !strings.Contains(got, "ERROR: upload failed: timeout") || !strings.Contains(got, "Warning: no .env") {
		t.Errorf("stderr = %q", got)
	}
}

// TestRenderMarkdownEmpty tests that blank input renders nothing
func TestRenderMarkdownEmpty(t *testing.T) {
	out, err := renderMarkdown("  \n", 80)
	if err != nil || out != "" {
		t.Errorf("renderMarkdown(blank) = %q, %v", out, err)
	}
}

// TestRenderMarkdownText tests that content survives a narrow width
func TestRenderMarkdownText(t *testing.T) {
	out, err := renderMarkdown("# Deployed\n\nsite is live", 5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Deployed") {
		t.Errorf("rendered output lost heading: %q", out)
	}
}

func TestMarkdownTable(t *testing.T) {
	got := MarkdownTable("Deployment", [][2]string{
		{"Project", "site"},
		{"Link", "a|b"},
	})
	for _, want := range []string{"## Deployment", "| Project | site |", `| Link | a\|b |`} {
		if !strings.Contains(got, want) {
			t.Errorf("MarkdownTable missing %q in:\n%s", want, got)
		}
	}
	if strings.HasPrefix(MarkdownTable("", nil), "##") {
		t.Error("empty title should not emit a heading")
	}
}

// TestWidthFallback tests COLUMNS and the fallback
func TestWidthFallback(t *testing.T) {
	t.Setenv("COLUMNS", "")
	if w := Width(); w <= 0 {
		t.Errorf("Width() = %d", w)
	}
	t.Setenv("COLUMNS", "132")
	// A real terminal size wins over COLUMNS.
	if w := Width(); w <= 0 {
		t.Errorf("Width() with COLUMNS = %d", w)
	}
}
