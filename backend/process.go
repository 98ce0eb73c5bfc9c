package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/internal/logx"
	"pkt.systems/x3270script/schema"
)

const (
	defaultBinary    = "s3270"
	stopGracePeriod  = 2 * time.Second
	stderrPreviewMax = 512
)

// ProcessConfig controls how the emulator process is spawned.
type ProcessConfig struct {
	BinaryPath string
	// Args are passed before any script-mode arguments; nil means -utf8.
	Args   []string
	Env    []string
	Logger pslog.Logger
}

// Process runs an emulator as a child process and talks to it over its
// standard input and output. Standard error is kept as the last error text.
type Process struct {
	cfg ProcessConfig
	log pslog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pump    *pump
	waitErr chan error
	lastErr string
	started time.Time
}

// NewProcess constructs a process backend.
func NewProcess(cfg ProcessConfig) *Process {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = defaultBinary
	}
	if cfg.Args == nil {
		cfg.Args = []string{"-utf8"}
	}
	return &Process{cfg: cfg, log: logx.WithBackend(cfg.Logger, "process")}
}

// Start spawns the emulator.
func (p *Process) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return fmt.Errorf("%w: process already started", schema.ErrInvalidOperation)
	}
	p.log.Info("emulator start", "binary", p.cfg.BinaryPath, "args", p.cfg.Args, "env_extra", len(p.cfg.Env))

	cmd := exec.Command(p.cfg.BinaryPath, p.cfg.Args...)
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.log.Error("emulator stdout failed", "err", err)
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.log.Error("emulator stderr failed", "err", err)
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.log.Error("emulator stdin failed", "err", err)
		return err
	}
	if err := cmd.Start(); err != nil {
		p.log.Error("emulator start failed", "err", err)
		p.lastErr = err.Error()
		return err
	}
	p.log.Info("emulator started", "pid", cmd.Process.Pid)

	pump := newPump(stdin, stdout, p.log)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.readStderr(stderr)
	}()
	// Wait closes the pipes, so it runs only once both streams are drained.
	waitErr := make(chan error, 1)
	go func() {
		<-pump.done
		<-stderrDone
		waitErr <- cmd.Wait()
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.started = time.Now()
	p.pump = pump
	p.waitErr = waitErr
	return nil
}

// Exchange sends one command and waits for its reply.
func (p *Process) Exchange(ctx context.Context, command string) (schema.Reply, error) {
	p.mu.Lock()
	pump := p.pump
	p.mu.Unlock()
	if pump == nil {
		return schema.Reply{}, fmt.Errorf("%w: process not started", schema.ErrInvalidOperation)
	}
	return pump.exchange(ctx, command)
}

// Close stops the emulator: stdin is closed, the process group gets SIGTERM
// and, after a grace period, SIGKILL. Close is idempotent.
func (p *Process) Close() error {
	p.mu.Lock()
	cmd, stdin, waitErr := p.cmd, p.stdin, p.waitErr
	p.cmd, p.stdin, p.pump, p.waitErr = nil, nil, nil, nil
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}
	_ = stdin.Close()
	if err := terminateGroup(cmd); err != nil {
		p.log.Debug("emulator terminate failed", "err", err)
	}
	var err error
	select {
	case err = <-waitErr:
	case <-time.After(stopGracePeriod):
		p.log.Warn("emulator did not exit, killing", "pid", cmd.Process.Pid)
		_ = killGroup(cmd)
		err = <-waitErr
	}
	fields := []any{"duration_ms", time.Since(p.started).Milliseconds()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fields = append(fields, "err", err)
	}
	p.log.Info("emulator stopped", fields...)
	if exitErr != nil {
		return nil
	}
	return err
}

// LastError returns the most recent line the emulator wrote to stderr.
func (p *Process) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Process) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = logx.Preview(line, stderrPreviewMax)
		p.log.Debug("emulator stderr", "line", line)
		p.mu.Lock()
		p.lastErr = line
		p.mu.Unlock()
	}
}
