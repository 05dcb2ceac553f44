package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// State is a step of one pairing attempt.
type State int

const (
	StateIdle State = iota
	StateCodeGenerated
	StateCodeRegistered
	StateListenerStarted
	StateBrowserOpened
	StateAwaitingCallback
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateCodeGenerated:    "code_generated",
	StateCodeRegistered:   "code_registered",
	StateListenerStarted:  "listener_started",
	StateBrowserOpened:    "browser_opened",
	StateAwaitingCallback: "awaiting_callback",
	StateSucceeded:        "succeeded",
	StateFailed:           "failed",
	StateTimedOut:         "timed_out",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Registrar stores a freshly generated code with the dashboard. It returns
// the opaque session token bound to this registration; the token, not the
// code, identifies the paired CLI afterwards.
type Registrar interface {
	SaveCode(ctx context.Context, code string) (session string, err error)
}

// Defaults for Config.
const (
	DefaultListenAddr      = "127.0.0.1:4000"
	DefaultTimeout         = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Config controls one pairing attempt.
type Config struct {
	ListenAddr      string        // callback listener address
	PairingURL      string        // dashboard page the browser is sent to
	Timeout         time.Duration // ceiling on waiting for the callback
	ShutdownTimeout time.Duration // bound on listener teardown
}

// Result describes how an attempt ended.
type Result struct {
	AttemptID   string
	Code        string
	Session     string // token issued at registration
	URL         string
	State       State
	ShutdownErr error
}

// Orchestrator drives a single pairing attempt. Construct one per attempt.
type Orchestrator struct {
	cfg       Config
	registrar Registrar
	browser   BrowserOpener
	generate  func() string

	// OnState, if set, is called on every state transition.
	OnState func(State)
	// OnBrowserError, if set, is called when the browser cannot be opened;
	// the attempt continues and the user can visit url by hand.
	OnBrowserError func(url string, err error)

	state State
	code  string
}

// New returns an orchestrator. A nil browser uses SystemBrowser.
func New(cfg Config, registrar Registrar, browser BrowserOpener) *Orchestrator {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if browser == nil {
		browser = SystemBrowser
	}
	return &Orchestrator{
		cfg:       cfg,
		registrar: registrar,
		browser:   browser,
		generate:  GenerateCode,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Code returns the code generated for this attempt, or "" before generation.
// The user types it into the dashboard page.
func (o *Orchestrator) Code() string {
	return o.code
}

func (o *Orchestrator) transition(s State) {
	slog.Debug("pairing state", "from", o.state.String(), "to", s.String())
	o.state = s
	if o.OnState != nil {
		o.OnState(s)
	}
}

// Run performs one attempt: generate, register, listen, open the browser and
// wait for the callback, the timeout or ctx cancellation, whichever comes
// first. The listener is torn down on every exit path once started.
//
// The returned error is nil on success, ErrCallbackFailed, ErrTimeout,
// ErrCancelled, a *ValidationError or a *TransportError.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if o.state != StateIdle {
		return nil, fmt.Errorf("pairing attempt already ran (state %s)", o.state)
	}
	res := &Result{AttemptID: uuid.NewString()}
	log := slog.Default().With("attempt", res.AttemptID)

	code := o.generate()
	res.Code = code
	o.code = code
	o.transition(StateCodeGenerated)

	session, err := o.registrar.SaveCode(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish(res, StateCancelled, ErrCancelled)
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			return o.finish(res, StateFailed, err)
		}
		var terr *TransportError
		if !errors.As(err, &terr) {
			err = &TransportError{Op: OpRegister, Err: err}
		}
		return o.finish(res, StateFailed, err)
	}
	res.Session = session
	o.transition(StateCodeRegistered)

	ln := NewListener(o.cfg.ListenAddr)
	if err := ln.Start(); err != nil {
		return o.finish(res, StateFailed, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
		defer cancel()
		if err := ln.Close(closeCtx); err != nil {
			log.Warn("close callback listener", "err", err)
			res.ShutdownErr = err
		}
	}()
	o.transition(StateListenerStarted)

	res.URL = o.pairingURL(ln.Port())
	if err := o.browser.Open(res.URL); err != nil {
		log.Debug("open browser", "err", err)
		if o.OnBrowserError != nil {
			o.OnBrowserError(res.URL, &TransportError{Op: OpBrowser, Err: err})
		}
	}
	o.transition(StateBrowserOpened)

	timer := time.NewTimer(o.cfg.Timeout)
	defer timer.Stop()
	o.transition(StateAwaitingCallback)

	select {
	case outcome := <-ln.Result():
		if outcome == OutcomeSuccess {
			return o.finish(res, StateSucceeded, nil)
		}
		return o.finish(res, StateFailed, ErrCallbackFailed)
	case <-timer.C:
		return o.finish(res, StateTimedOut, ErrTimeout)
	case <-ctx.Done():
		return o.finish(res, StateCancelled, ErrCancelled)
	}
}

func (o *Orchestrator) finish(res *Result, s State, err error) (*Result, error) {
	o.transition(s)
	res.State = s
	return res, err
}

// pairingURL appends the callback port so the dashboard page knows where to report.
func (o *Orchestrator) pairingURL(port int) string {
	u, err := url.Parse(o.cfg.PairingURL)
	if err != nil {
		return o.cfg.PairingURL
	}
	q := u.Query()
	q.Set("port", strconv.Itoa(port))
	u.RawQuery = q.Encode()
	return u.String()
}
