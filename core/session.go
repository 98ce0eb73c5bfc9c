package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/command"
	"pkt.systems/x3270script/internal/logx"
	"pkt.systems/x3270script/schema"
)

const (
	// DefaultTimeout bounds a single command when no timeout is given.
	DefaultTimeout = 10 * time.Second
	// DefaultStartTimeout bounds backend acquisition, including connect retries.
	DefaultStartTimeout = 30 * time.Second
	// DefaultHandshakeTimeout bounds the priming status query issued by Start.
	DefaultHandshakeTimeout = 5 * time.Second
)

// Require is the host-state policy screen-modifying operations must satisfy.
type Require int

const (
	// RequireNone never blocks operations.
	RequireNone Require = iota
	// RequireConnected blocks operations unless the host is connected.
	RequireConnected
	// Require3270 blocks operations unless the host is connected in 3270 mode.
	Require3270
)

// ParseRequire maps the config names none, connected and 3270.
func ParseRequire(name string) (Require, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return RequireNone, nil
	case "connected":
		return RequireConnected, nil
	case "3270":
		return Require3270, nil
	default:
		return RequireNone, fmt.Errorf("%w: require policy %q", schema.ErrInvalidArgument, name)
	}
}

func (r Require) String() string {
	switch r {
	case RequireConnected:
		return "connected"
	case Require3270:
		return "3270"
	default:
		return "none"
	}
}

// Config controls session behavior. Zero durations take the package defaults.
type Config struct {
	// Name labels the session in logs.
	Name string
	// Origin is the row/column origin callers use (0 or 1).
	Origin           int
	Timeout          time.Duration
	StartTimeout     time.Duration
	HandshakeTimeout time.Duration
	HistorySize      int
	// ExceptionMode returns failures as *CommandError instead of an
	// unsuccessful IoResult.
	ExceptionMode bool
	Require       Require
	// ConnectFlags apply to Connect calls that pass no flags of their own.
	ConnectFlags command.ConnectFlags
	// Charset names the emulator's ASCII-mode dump encoding.
	Charset string
	Logger  pslog.Logger
}

type sessionState int

const (
	stateNew sessionState = iota
	stateRunning
	stateStopped
	stateClosed
)

// Session drives one emulator through a Backend. Calls are serialized.
type Session struct {
	cfg     Config
	backend Backend
	log     pslog.Logger

	mu      sync.Mutex
	state   sessionState
	history *History
	status  *Status
}

// NewSession validates cfg and binds it to b. The session is unusable
// until Start succeeds.
func NewSession(b Backend, cfg Config) (*Session, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", schema.ErrInvalidArgument)
	}
	if cfg.Origin != 0 && cfg.Origin != 1 {
		return nil, fmt.Errorf("%w: origin %d must be 0 or 1", schema.ErrInvalidArgument, cfg.Origin)
	}
	if cfg.HistorySize < 0 {
		return nil, fmt.Errorf("%w: history size %d", schema.ErrInvalidArgument, cfg.HistorySize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Session{
		cfg:     cfg,
		backend: b,
		log:     logx.WithSession(cfg.Logger, cfg.Name),
		history: newHistory(cfg.HistorySize),
	}, nil
}

// Start acquires the backend and primes the session with a status query.
// On failure the backend is released and Start may be called again.
func (s *Session) Start(ctx context.Context) (*IoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning, stateStopped:
		return nil, fmt.Errorf("%w: session already started", schema.ErrInvalidOperation)
	case stateClosed:
		return nil, fmt.Errorf("%w: session closed", schema.ErrInvalidOperation)
	}

	started := time.Now()
	startCtx, cancel := context.WithTimeout(ctx, s.cfg.StartTimeout)
	err := s.backend.Start(startCtx)
	cancel()
	if err != nil {
		_ = s.backend.Close()
		res := &IoResult{
			Err:      fmt.Errorf("%w: %w", schema.ErrConnectFailed, err),
			Started:  started,
			Duration: time.Since(started),
		}
		s.log.Error("session start failed", "err", err, "backend_err", s.backend.LastError(), "duration_ms", res.Duration.Milliseconds())
		return s.finish("start", CommandErrorTransport, res)
	}
	s.log.Debug("backend acquired", "duration_ms", time.Since(started).Milliseconds())

	s.state = stateRunning
	res, kind := s.exchange(ctx, "", s.cfg.HandshakeTimeout)
	if !res.Success {
		_ = s.backend.Close()
		s.state = stateNew
		s.log.Error("session handshake failed", "err", res.Err, "backend_err", s.backend.LastError())
		return s.finish("start", kind, res)
	}
	s.log.Info("session started", "status", res.StatusLine, "duration_ms", time.Since(started).Milliseconds())
	return res, nil
}

// Io sends raw command text and waits up to timeout (the session default
// when zero) for the reply. Text containing NUL, CR or LF is rejected.
func (s *Session) Io(ctx context.Context, text string, timeout time.Duration) (*IoResult, error) {
	return s.run(ctx, "io", text, timeout, false)
}

// run is the single path every operation takes to the backend. gated
// commands are subject to the require policy.
func (s *Session) run(ctx context.Context, op, text string, timeout time.Duration, gated bool) (*IoResult, error) {
	if err := validateCommandText(text); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// History holds backend round trips only; the not-running and policy
	// refusals below never reach the emulator and are not recorded.
	switch s.state {
	case stateNew:
		return nil, fmt.Errorf("%w: session not started", schema.ErrInvalidOperation)
	case stateClosed:
		return nil, fmt.Errorf("%w: session closed", schema.ErrInvalidOperation)
	case stateStopped:
		return s.finish(op, CommandErrorTransport, &IoResult{Command: text, Err: schema.ErrNotRunning, Started: time.Now()})
	}
	if gated {
		if err := s.checkPolicy(); err != nil {
			s.log.Debug("command refused by policy", "op", op, "require", s.cfg.Require.String())
			return s.finish(op, CommandErrorPolicy, &IoResult{Command: text, StatusLine: s.statusLine(), Status: s.status, Err: err, Started: time.Now()})
		}
	}
	res, kind := s.exchange(ctx, text, timeout)
	if !res.Success {
		return s.finish(op, kind, res)
	}
	return res, nil
}

// exchange performs one backend round trip and records it in history.
func (s *Session) exchange(ctx context.Context, text string, timeout time.Duration) (*IoResult, CommandErrorKind) {
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	log := logx.WithCommand(s.log, text)
	ioCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	log.Trace("command sent")
	reply, err := s.backend.Exchange(ioCtx, text)
	res := &IoResult{Command: text, Started: started, Duration: time.Since(started)}
	kind := CommandErrorTransport
	switch {
	case err == nil:
		res.Result = reply.Data
		res.StatusLine = reply.Status
		if st, perr := ParseStatus(reply.Status); perr == nil {
			res.Status = &st
			s.status = &st
		}
		res.Success = reply.OK
		if !reply.OK {
			kind = CommandErrorCommand
			res.Err = fmt.Errorf("%w: %s", schema.ErrCommandFailed, replyMessage(reply))
		}
		log.Trace("reply received", "ok", reply.OK, "lines", len(reply.Data), "status", reply.Status, "duration_ms", res.Duration.Milliseconds())
	case errors.Is(err, schema.ErrEndOfStream):
		s.state = stateStopped
		res.Err = err
		log.Warn("backend closed", "err", err, "backend_err", s.backend.LastError())
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		res.Err = fmt.Errorf("%w after %s", schema.ErrTimeout, timeout)
		log.Warn("command timed out", "timeout_ms", timeout.Milliseconds())
	default:
		res.Err = err
		log.Warn("command failed", "err", err)
	}
	if s.history.append(res) {
		s.log.Debug("history entry evicted", "capacity", s.history.Cap())
	}
	return res, kind
}

// finish applies exception mode to a failed result.
func (s *Session) finish(op string, kind CommandErrorKind, res *IoResult) (*IoResult, error) {
	if s.cfg.ExceptionMode {
		return nil, &CommandError{Kind: kind, Op: op, Result: res, Err: res.Err}
	}
	return res, nil
}

func (s *Session) checkPolicy() error {
	switch s.cfg.Require {
	case RequireConnected:
		if s.status == nil || !s.status.Connected() {
			return schema.ErrNotConnected
		}
	case Require3270:
		if s.status == nil || !s.status.In3270Mode() {
			return fmt.Errorf("%w in 3270 mode", schema.ErrNotConnected)
		}
	}
	return nil
}

func (s *Session) statusLine() string {
	if s.status == nil {
		return ""
	}
	return s.status.Raw
}

// Close releases the backend. The session cannot be used afterwards;
// repeated calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	err := s.backend.Close()
	s.log.Debug("session closed", "err", err)
	return err
}

// Running reports whether the session can perform I/O.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// History returns recorded results, most recent first.
func (s *Session) History() []*IoResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// LastCommand returns the most recent recorded result.
func (s *Session) LastCommand() (*IoResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Last()
}

// Status returns the status parsed from the most recent reply that had one.
func (s *Session) Status() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return Status{}, false
	}
	return *s.status, true
}

// Origin returns the row/column origin used by the session.
func (s *Session) Origin() int { return s.cfg.Origin }

func validateCommandText(text string) error {
	if i := strings.IndexAny(text, "\x00\r\n"); i >= 0 {
		return fmt.Errorf("%w: command text has control character %q at %d", schema.ErrInvalidArgument, text[i], i)
	}
	return nil
}

func replyMessage(reply schema.Reply) string {
	for _, line := range reply.Data {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "emulator reported error"
}
