package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/x3270script/schema"
)

// ErrHang makes a Mock handler block until the caller's context ends.
var ErrHang = errors.New("mock: hang")

// MockHandler produces the reply for one command.
type MockHandler func(command string) (schema.Reply, error)

// Mock is a scriptable in-memory backend.
type Mock struct {
	// StartErr, when set, is returned by Start.
	StartErr error

	mu       sync.Mutex
	handler  MockHandler
	started  int
	closed   int
	running  bool
	eof      bool
	commands []string
	lastErr  string
}

// NewMock returns a mock that answers every command with reply.
func NewMock(handler MockHandler) *Mock {
	if handler == nil {
		handler = StaticReply(OKReply(DefaultStatus))
	}
	return &Mock{handler: handler}
}

// DefaultStatus is a connected 24x80 3270 status line.
const DefaultStatus = "U F U C(mainframe) I 2 24 80 0 0 0x0 -"

// DisconnectedStatus is the status of an emulator with no host.
const DisconnectedStatus = "U U U N N 4 24 80 0 0 0x0 -"

// OKReply builds a successful reply.
func OKReply(status string, data ...string) schema.Reply {
	return schema.Reply{Data: data, Status: status, OK: true}
}

// ErrorReply builds a failed reply.
func ErrorReply(status string, data ...string) schema.Reply {
	return schema.Reply{Data: data, Status: status, OK: false}
}

// StaticReply answers every command with reply.
func StaticReply(reply schema.Reply) MockHandler {
	return func(string) (schema.Reply, error) { return reply, nil }
}

// SetHandler replaces the handler.
func (m *Mock) SetHandler(h MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// CloseStream simulates the emulator exiting: pending and later exchanges
// report end of stream.
func (m *Mock) CloseStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eof = true
}

// Start marks the mock running.
func (m *Mock) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	if m.StartErr != nil {
		m.lastErr = m.StartErr.Error()
		return m.StartErr
	}
	m.running = true
	m.eof = false
	return nil
}

// Exchange records command and runs the handler.
func (m *Mock) Exchange(ctx context.Context, command string) (schema.Reply, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return schema.Reply{}, fmt.Errorf("%w: mock not started", schema.ErrInvalidOperation)
	}
	m.commands = append(m.commands, command)
	eof, handler := m.eof, m.handler
	m.mu.Unlock()
	if eof {
		return schema.Reply{}, fmt.Errorf("%w: mock stream closed", schema.ErrEndOfStream)
	}
	reply, err := handler(command)
	if errors.Is(err, ErrHang) {
		<-ctx.Done()
		return schema.Reply{}, fmt.Errorf("waiting for reply: %w", ctx.Err())
	}
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
	}
	return reply, err
}

// Close marks the mock stopped.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.closed++
	}
	m.running = false
	return nil
}

// LastError returns the last start or handler error.
func (m *Mock) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Commands returns every command received, in order.
func (m *Mock) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Starts returns how many times Start was called.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Closes returns how many times a running mock was closed.
func (m *Mock) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
