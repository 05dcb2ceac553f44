package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

//go:embed templates/*.html
var templateFS embed.FS

var cliAuthTmpl = template.Must(template.ParseFS(templateFS, "templates/cliauth.html"))

type cliAuthData struct {
	CallbackURL string
}

// handleCLIAuthPage serves the page where a signed-in user enters the code
// shown by the CLI. After verification the browser is sent to the CLI's
// loopback callback on the port given by ?port=.
func (s *Server) handleCLIAuthPage(w http.ResponseWriter, r *http.Request) {
	port := s.config.DefaultCallbackPort
	if v := r.URL.Query().Get("port"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			http.Error(w, "invalid port", http.StatusBadRequest)
			return
		}
		port = n
	}

	data := cliAuthData{CallbackURL: fmt.Sprintf("http://127.0.0.1:%d/auth/callback", port)}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := cliAuthTmpl.Execute(w, data); err != nil {
		logFor(r.Context()).Error("render cliauth page", "err", err)
	}
}
