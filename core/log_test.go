package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/backend"
	"pkt.systems/x3270script/schema"
)

type logEntry struct {
	Message string
	Fields  map[string]any
}

type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) Entries() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(c.buf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		message := ""
		if value, ok := payload["message"].(string); ok {
			message = value
		} else if value, ok := payload["msg"].(string); ok {
			message = value
		}
		entries = append(entries, logEntry{Message: message, Fields: payload})
	}
	return entries
}

func (c *logCapture) find(message string) (logEntry, bool) {
	for _, entry := range c.Entries() {
		if entry.Message == message {
			return entry, true
		}
	}
	return logEntry{}, false
}

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.TraceLevel,
	})
}

func TestTimeoutIsLogged(t *testing.T) {
	capture := &logCapture{}
	cfg := Config{Name: "tso", Logger: newCaptureLogger(capture)}
	s, _ := newStartedSession(t, cfg, func(command string) (schema.Reply, error) {
		if command == "Slow()" {
			return schema.Reply{}, backend.ErrHang
		}
		return backend.OKReply(backend.DefaultStatus), nil
	})
	if _, err := s.Io(context.Background(), "Slow()", 20*time.Millisecond); err != nil {
		t.Fatalf("Io: %v", err)
	}
	entry, ok := capture.find("command timed out")
	if !ok {
		t.Fatalf("expected timeout log entry, got %+v", capture.Entries())
	}
	if entry.Fields["session"] != "tso" || entry.Fields["command"] != "Slow()" {
		t.Fatalf("unexpected timeout fields: %+v", entry.Fields)
	}
}

func TestCommandsAreTraced(t *testing.T) {
	capture := &logCapture{}
	s, _ := newStartedSession(t, Config{Logger: newCaptureLogger(capture)}, nil)
	if _, err := s.Enter(context.Background()); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	found := false
	for _, entry := range capture.Entries() {
		if entry.Message == "reply received" && entry.Fields["command"] == "Enter()" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected reply trace for Enter(), got %+v", capture.Entries())
	}
}
