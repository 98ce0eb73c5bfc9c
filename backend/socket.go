package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/internal/logx"
	"pkt.systems/x3270script/schema"
)

const (
	defaultSocketHost    = "127.0.0.1"
	defaultRetryInterval = 250 * time.Millisecond
	defaultDialTimeout   = 2 * time.Second
)

// SocketConfig controls the connection to an emulator's script port.
type SocketConfig struct {
	Host          string
	Port          int
	RetryInterval time.Duration
	DialTimeout   time.Duration
	Logger        pslog.Logger
}

// Socket talks to an already running emulator through its TCP script port.
type Socket struct {
	cfg SocketConfig
	log pslog.Logger
	// resolve fills in the port at Start; nil for a fixed port.
	resolve func(ctx context.Context) (int, error)

	mu      sync.Mutex
	conn    net.Conn
	pump    *pump
	lastErr string
}

// NewSocket constructs a socket backend for a fixed port.
func NewSocket(cfg SocketConfig) *Socket {
	if cfg.Host == "" {
		cfg.Host = defaultSocketHost
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Socket{cfg: cfg, log: logx.WithBackend(cfg.Logger, "socket")}
}

// EnvConfig is the environment a script started by the emulator inherits.
type EnvConfig struct {
	Port int `env:"X3270PORT,required"`
}

// NewSocketFromEnv constructs a socket backend whose port is read from
// X3270PORT when it starts. A missing or non-numeric value fails Start.
func NewSocketFromEnv(cfg SocketConfig, lookuper envconfig.Lookuper) *Socket {
	s := NewSocket(cfg)
	s.log = logx.WithBackend(cfg.Logger, "env")
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	s.resolve = func(ctx context.Context) (int, error) {
		var env EnvConfig
		if err := envconfig.ProcessWith(ctx, &env, lookuper); err != nil {
			return 0, fmt.Errorf("%w: %v", schema.ErrConnectFailed, err)
		}
		return env.Port, nil
	}
	return s
}

// Start dials the script port, retrying at a fixed interval until ctx ends.
func (s *Socket) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return fmt.Errorf("%w: socket already connected", schema.ErrInvalidOperation)
	}
	port := s.cfg.Port
	if s.resolve != nil {
		p, err := s.resolve(ctx)
		if err != nil {
			s.lastErr = err.Error()
			return err
		}
		port = p
	}
	if port <= 0 || port > 65535 {
		err := fmt.Errorf("%w: port %d", schema.ErrInvalidArgument, port)
		s.lastErr = err.Error()
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	conn, err := dialWithRetry(ctx, addr, s.cfg.RetryInterval, s.cfg.DialTimeout, s.log)
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.log.Info("emulator connected", "addr", addr)
	s.conn = conn
	s.pump = newPump(conn, conn, s.log)
	return nil
}

// Exchange sends one command and waits for its reply.
func (s *Socket) Exchange(ctx context.Context, command string) (schema.Reply, error) {
	s.mu.Lock()
	pump := s.pump
	s.mu.Unlock()
	if pump == nil {
		return schema.Reply{}, fmt.Errorf("%w: socket not connected", schema.ErrInvalidOperation)
	}
	reply, err := pump.exchange(ctx, command)
	if err != nil && errors.Is(err, schema.ErrEndOfStream) {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
	}
	return reply, err
}

// Close drops the connection. Close is idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn, s.pump = nil, nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.log.Debug("emulator connection closed")
	return conn.Close()
}

// LastError returns the last connect or stream error.
func (s *Socket) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
