package pairing

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackPath is the only path the listener answers.
const CallbackPath = "/auth/callback"

//go:embed templates/callback.html
var callbackFS embed.FS

var callbackTmpl = template.Must(template.ParseFS(callbackFS, "templates/callback.html"))

// Outcome is the terminal signal delivered by the browser.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Listener is a short-lived local HTTP server that receives one callback.
// It belongs to a single pairing attempt.
type Listener struct {
	addr string

	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
	started bool

	result      chan Outcome
	resolveOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

// NewListener returns an unstarted listener for addr (e.g. "127.0.0.1:4000").
func NewListener(addr string) *Listener {
	return &Listener{
		addr:   addr,
		result: make(chan Outcome, 1),
	}
}

// Start binds the port and begins serving in the background.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("callback listener already started")
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return &TransportError{Op: OpBind, Err: err}
	}
	l.ln = ln
	l.started = true
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("callback listener", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.addr
}

// Port returns the bound TCP port, or 0 before Start.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return 0
	}
	if tcp, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// URL returns the full callback URL.
func (l *Listener) URL() string {
	return "http://" + l.Addr() + CallbackPath
}

// Result yields the first outcome received. It delivers at most one value.
func (l *Listener) Result() <-chan Outcome {
	return l.result
}

func (l *Listener) resolve(o Outcome) {
	l.resolveOnce.Do(func() {
		l.result <- o
	})
}

// ServeHTTP handles the browser callback.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != CallbackPath {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "404 Not Found")
		return
	}

	outcome := OutcomeFailure
	if r.URL.Query().Get("status") == "success" {
		outcome = OutcomeSuccess
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := callbackTmpl.Execute(w, struct{ Success bool }{outcome == OutcomeSuccess}); err != nil {
		slog.Warn("render callback page", "err", err)
	}
	slog.Debug("callback received", "outcome", outcome.String())
	l.resolve(outcome)
}

// Close shuts the listener down and releases the port. It is safe to call
// more than once and before Start. If graceful shutdown does not finish before
// ctx is done, open connections are dropped and ErrShutdownTimeout is returned.
func (l *Listener) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		srv := l.srv
		l.started = true // a closed listener cannot be restarted
		l.mu.Unlock()
		if srv == nil {
			return
		}

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				l.closeErr = ErrShutdownTimeout
				return
			}
			l.closeErr = fmt.Errorf("shutdown callback listener: %w", err)
		}
	})
	return l.closeErr
}
