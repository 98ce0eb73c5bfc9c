package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/schema"
)

const (
	dataPrefix   = "data:"
	maxReplyLine = 1 << 20
)

type pumpResult struct {
	reply schema.Reply
	err   error
}

type pumpRequest struct {
	line    string
	reply   chan pumpResult
	written chan error
}

// pump writes commands to the emulator and matches reply groups to them in
// FIFO order. A request that gives up leaves its slot queued so the late
// reply is consumed by it and dropped. Writes happen on their own goroutine
// so a peer that stops reading cannot hold a caller past its deadline.
type pump struct {
	w      io.Writer
	log    pslog.Logger
	writes chan pumpRequest

	mu      sync.Mutex
	pending []chan pumpResult
	done    chan struct{}
	err     error
}

func newPump(w io.Writer, r io.Reader, log pslog.Logger) *pump {
	p := &pump{w: w, log: log, writes: make(chan pumpRequest), done: make(chan struct{})}
	go p.readLoop(r)
	go p.writeLoop()
	return p
}

func (p *pump) exchange(ctx context.Context, command string) (schema.Reply, error) {
	req := pumpRequest{
		line:    command + "\n",
		reply:   make(chan pumpResult, 1),
		written: make(chan error, 1),
	}
	select {
	case p.writes <- req:
	case <-p.done:
		return schema.Reply{}, p.streamErr()
	case <-ctx.Done():
		return schema.Reply{}, fmt.Errorf("waiting to send: %w", ctx.Err())
	}

	select {
	case err := <-req.written:
		if err != nil {
			return schema.Reply{}, fmt.Errorf("%w: write: %v", schema.ErrEndOfStream, err)
		}
	case <-ctx.Done():
		return schema.Reply{}, fmt.Errorf("sending command: %w", ctx.Err())
	}

	select {
	case res := <-req.reply:
		return res.reply, res.err
	case <-p.done:
		select {
		case res := <-req.reply:
			return res.reply, res.err
		default:
		}
		return schema.Reply{}, p.streamErr()
	case <-ctx.Done():
		return schema.Reply{}, fmt.Errorf("waiting for reply: %w", ctx.Err())
	}
}

// writeLoop queues the reply slot before writing, so a fast reply always
// finds it. A failed write takes its slot back out.
func (p *pump) writeLoop() {
	for {
		var req pumpRequest
		select {
		case req = <-p.writes:
		case <-p.done:
			return
		}
		p.mu.Lock()
		p.pending = append(p.pending, req.reply)
		p.mu.Unlock()
		_, err := io.WriteString(p.w, req.line)
		if err != nil {
			p.removePending(req.reply)
		}
		req.written <- err
	}
}

func (p *pump) removePending(ch chan pumpResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.pending {
		if c == ch {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}

func (p *pump) streamErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *pump) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplyLine)
	var (
		data   []string
		status string
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, dataPrefix):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " "))
		case line == "ok" || line == "error":
			p.deliver(schema.Reply{Data: data, Status: status, OK: line == "ok"})
			data, status = nil, ""
		default:
			status = line
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	p.mu.Lock()
	p.err = fmt.Errorf("%w: %v", schema.ErrEndOfStream, err)
	close(p.done)
	p.mu.Unlock()
}

func (p *pump) deliver(reply schema.Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		p.log.Warn("unsolicited reply dropped", "status", reply.Status, "lines", len(reply.Data))
		return
	}
	ch := p.pending[0]
	p.pending = p.pending[1:]
	ch <- pumpResult{reply: reply}
}
