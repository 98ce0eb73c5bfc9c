package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"pkt.systems/x3270script/internal/logx"
	"pkt.systems/x3270script/schema"
)

type pipeEmulator struct {
	commands chan string
	replies  *io.PipeWriter
}

func newPipePump(t *testing.T) (*pump, *pipeEmulator) {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	replyR, replyW := io.Pipe()
	emu := &pipeEmulator{commands: make(chan string, 16), replies: replyW}
	go func() {
		scanner := bufio.NewScanner(cmdR)
		for scanner.Scan() {
			emu.commands <- scanner.Text()
		}
	}()
	t.Cleanup(func() {
		_ = replyW.Close()
		_ = cmdR.Close()
	})
	return newPump(cmdW, replyR, logx.Discard()), emu
}

// next returns the next command the pump wrote, or "" after a second.
func (e *pipeEmulator) next() string {
	select {
	case cmd := <-e.commands:
		return cmd
	case <-time.After(time.Second):
		return ""
	}
}

func (e *pipeEmulator) reply(text string) {
	_, _ = io.WriteString(e.replies, text)
}

func TestPumpParsesReplyGroups(t *testing.T) {
	p, emu := newPipePump(t)
	go func() {
		cmd := emu.next()
		emu.reply(fmt.Sprintf("data: echo %s\r\ndata:\ndata: second\nU F U C(host) I 2 24 80 0 0 0x0 -\nok\n", cmd))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := p.exchange(ctx, "Query(Host)")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	want := []string{"echo Query(Host)", "", "second"}
	if len(reply.Data) != len(want) {
		t.Fatalf("data = %q, want %q", reply.Data, want)
	}
	for i := range want {
		if reply.Data[i] != want[i] {
			t.Fatalf("data = %q, want %q", reply.Data, want)
		}
	}
	if !reply.OK || reply.Status != "U F U C(host) I 2 24 80 0 0 0x0 -" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestPumpReportsErrorVerdict(t *testing.T) {
	p, emu := newPipePump(t)
	go func() {
		emu.next()
		emu.reply("data: Unknown action: Bogus\nU U U N N 4 24 80 0 0 0x0 -\nerror\n")
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := p.exchange(ctx, "Bogus()")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if reply.OK {
		t.Fatalf("expected error verdict, got %+v", reply)
	}
}

func TestPumpDropsLateReply(t *testing.T) {
	p, emu := newPipePump(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	_, err := p.exchange(ctx, "Slow()")
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if got := emu.next(); got != "Slow()" {
		t.Fatalf("emulator saw %q", got)
	}
	emu.reply("data: slow\nS\nok\n")

	go func() {
		emu.next()
		emu.reply("data: fast\nS\nok\n")
	}()
	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := p.exchange(ctx, "Fast()")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if len(reply.Data) != 1 || reply.Data[0] != "fast" {
		t.Fatalf("late reply leaked into next exchange: %q", reply.Data)
	}
}

func TestPumpEndOfStream(t *testing.T) {
	p, emu := newPipePump(t)
	go func() {
		emu.next()
		_ = emu.replies.Close()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := p.exchange(ctx, "Quit()"); !errors.Is(err, schema.ErrEndOfStream) {
		t.Fatalf("expected end of stream, got %v", err)
	}
	if !p.closed() {
		t.Fatalf("expected pump closed")
	}
	if _, err := p.exchange(ctx, "Enter()"); !errors.Is(err, schema.ErrEndOfStream) {
		t.Fatalf("expected end of stream after close, got %v", err)
	}
}

func TestPumpWriteHonorsDeadline(t *testing.T) {
	local, peer := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = peer.Close()
	})
	p := newPump(local, local, logx.Discard())

	for _, cmd := range []string{`String("stalled")`, "Enter()"} {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		start := time.Now()
		_, err := p.exchange(ctx, cmd)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("%s: expected deadline error, got %v", cmd, err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Fatalf("%s: exchange returned after %s", cmd, elapsed)
		}
	}
}

// closed reports whether the read side has ended.
func (p *pump) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
