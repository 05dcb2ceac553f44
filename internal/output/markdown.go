package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	minMarkdownWidth = 20
	maxMarkdownWidth = 100
	fallbackWidth    = 80
)

// Width reports the terminal width, falling back to $COLUMNS and then 80.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return fallbackWidth
}

// RenderMarkdown renders text with glamour, wrapped to the terminal.
func RenderMarkdown(text string) (string, error) {
	return renderMarkdown(text, Width())
}

// renderMarkdown clamps width to [20, 100]; long lines in a wide terminal
// are harder to scan than wrapped ones.
func renderMarkdown(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	width = max(minMarkdownWidth, min(width, maxMarkdownWidth))

	style := glamour.WithAutoStyle()
	if !IsInteractive() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// MarkdownTable builds a two-column markdown table headed by title. Pipe
// characters in values are escaped.
func MarkdownTable(title string, rows [][2]string) string {
	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", title)
	}
	sb.WriteString("| | |\n|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "| %s | %s |\n", escapeCell(r[0]), escapeCell(r[1]))
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
