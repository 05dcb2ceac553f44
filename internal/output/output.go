// Package output holds the CLI's lipgloss styles and the prompt, spinner and
// markdown helpers built on them.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	codeStyle    = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
)

// Message sinks; tests swap them for buffers.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func printStyled(w io.Writer, style lipgloss.Style, prefix, format string, args []any) {
	fmt.Fprintln(w, style.Render(prefix+fmt.Sprintf(format, args...)))
}

// Success prints a green confirmation line.
func Success(format string, args ...any) { printStyled(stdout, successStyle, "", format, args) }

// Error prints to stderr with an ERROR prefix.
func Error(format string, args ...any) { printStyled(stderr, errorStyle, "ERROR: ", format, args) }

// Warning prints to stderr with a Warning prefix.
func Warning(format string, args ...any) { printStyled(stderr, warningStyle, "Warning: ", format, args) }

// Info prints an unstyled line.
func Info(format string, args ...any) { fmt.Fprintf(stdout, format+"\n", args...) }

// Subtle prints a dimmed line.
func Subtle(format string, args ...any) { printStyled(stdout, subtleStyle, "", format, args) }

const bannerArt = `     _      _               _
  __| | ___| |__   ___  ___| |_
 / _' |/ _ \ '_ \ / _ \/ __| __|
| (_| |  __/ | | | (_) \__ \ |_
 \__,_|\___|_| |_|\___/|___/\__|`

// Banner returns the dehost logo with a tagline.
func Banner(version string) string {
	var sb strings.Builder
	sb.WriteString(bannerStyle.Render(bannerArt))
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("Deploy static sites to IPFS from your terminal."))
	if version != "" {
		sb.WriteString(" ")
		sb.WriteString(subtleStyle.Render(version))
	}
	return sb.String()
}

// Code renders a pairing code in a highlighted box.
func Code(code string) string {
	return codeStyle.Render(code)
}

// Link renders a URL for display.
func Link(url string) string {
	return accentStyle.Underline(true).Render(url)
}

// KeyValue formats aligned "key: value" lines with keys padded to the widest.
func KeyValue(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		key := subtleStyle.Render(fmt.Sprintf("%-*s", width+1, p[0]+":"))
		lines[i] = key + " " + p[1]
	}
	return strings.Join(lines, "\n")
}

// FormatTimeAgo renders t relative to now ("just now", "5m ago", "3d ago");
// anything a week or older is shown as a date.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	var n int
	var unit string
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		n, unit = int(d/time.Minute), "m"
	case d < 24*time.Hour:
		n, unit = int(d/time.Hour), "h"
	case d < 7*24*time.Hour:
		n, unit = int(d/(24*time.Hour)), "d"
	default:
		return t.Format("2006-01-02")
	}
	return strconv.Itoa(n) + unit + " ago"
}
