package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/x3270script/backend"
	"pkt.systems/x3270script/command"
	"pkt.systems/x3270script/schema"
	"pkt.systems/x3270script/screen"
)

func sentAfterStart(mock *backend.Mock) []string {
	return mock.Commands()[1:]
}

func TestKeyOperationsRender(t *testing.T) {
	s, mock := newStartedSession(t, Config{}, nil)
	ctx := context.Background()
	steps := []func() (*IoResult, error){
		func() (*IoResult, error) { return s.Enter(ctx) },
		func() (*IoResult, error) { return s.Clear(ctx) },
		func() (*IoResult, error) { return s.PF(ctx, 24) },
		func() (*IoResult, error) { return s.PA(ctx, 1) },
		func() (*IoResult, error) { return s.Tab(ctx) },
		func() (*IoResult, error) { return s.BackTab(ctx) },
		func() (*IoResult, error) { return s.Home(ctx) },
		func() (*IoResult, error) { return s.EraseEOF(ctx) },
		func() (*IoResult, error) { return s.EraseInput(ctx) },
		func() (*IoResult, error) { return s.Reset(ctx) },
		func() (*IoResult, error) { return s.Attn(ctx) },
		func() (*IoResult, error) { return s.SysReq(ctx) },
		func() (*IoResult, error) { return s.NewLine(ctx) },
		func() (*IoResult, error) { return s.Disconnect(ctx) },
		func() (*IoResult, error) { return s.String(ctx, "logon, user") },
		func() (*IoResult, error) { return s.Key(ctx, "a") },
		func() (*IoResult, error) { return s.Query(ctx, "") },
		func() (*IoResult, error) { return s.Query(ctx, "Host") },
	}
	for i, step := range steps {
		res, err := step()
		if err != nil || !res.Success {
			t.Fatalf("step %d = %+v, %v", i, res, err)
		}
	}
	want := []string{
		"Enter()", "Clear()", "PF(24)", "PA(1)", "Tab()", "BackTab()", "Home()",
		"EraseEOF()", "EraseInput()", "Reset()", "Attn()", "SysReq()", "Newline()",
		"Disconnect()", `String("logon, user")`, "Key(a)", "Query()", "Query(Host)",
	}
	if diff := cmp.Diff(want, sentAfterStart(mock)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyNumbersOutOfRange(t *testing.T) {
	s, mock := newStartedSession(t, Config{}, nil)
	ctx := context.Background()
	for _, n := range []int{0, 25} {
		if _, err := s.PF(ctx, n); !errors.Is(err, schema.ErrOutOfRange) {
			t.Fatalf("PF(%d) error = %v", n, err)
		}
	}
	for _, n := range []int{0, 4} {
		if _, err := s.PA(ctx, n); !errors.Is(err, schema.ErrOutOfRange) {
			t.Fatalf("PA(%d) error = %v", n, err)
		}
	}
	if len(sentAfterStart(mock)) != 0 {
		t.Fatalf("invalid keys reached the backend")
	}
}

func TestCoordinateOperationsTranslateOrigin(t *testing.T) {
	s, mock := newStartedSession(t, Config{Origin: 1}, nil)
	ctx := context.Background()
	if _, err := s.MoveCursor(ctx, 24, 80); err != nil {
		t.Fatalf("MoveCursor: %v", err)
	}
	if _, err := s.PutString(ctx, 1, 1, "hi"); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if _, err := s.PutStringEOF(ctx, 2, 10, "a b"); err != nil {
		t.Fatalf("PutStringEOF: %v", err)
	}
	want := []string{
		"MoveCursor(23,79)",
		"MoveCursor(0,0) String(hi)",
		`MoveCursor(1,9) EraseEOF() String("a b")`,
	}
	if diff := cmp.Diff(want, sentAfterStart(mock)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}

	bad := [][2]int{{0, 1}, {1, 0}, {25, 1}, {1, 81}}
	for _, rc := range bad {
		if _, err := s.MoveCursor(ctx, rc[0], rc[1]); !errors.Is(err, schema.ErrOutOfRange) {
			t.Fatalf("MoveCursor(%d,%d) error = %v", rc[0], rc[1], err)
		}
	}
}

func TestConnectFlagsOverrideDefaults(t *testing.T) {
	s, mock := newStartedSession(t, Config{ConnectFlags: command.FlagTLS}, nil)
	ctx := context.Background()
	if _, err := s.Connect(ctx, "mvs", "", nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := s.Connect(ctx, "mvs", "992", nil, command.FlagNoVerify); err != nil {
		t.Fatalf("Connect with flags: %v", err)
	}
	if _, err := s.Connect(ctx, "mvs", "", []string{"lu1", "lu2"}, command.NoFlags); err != nil {
		t.Fatalf("Connect with LUs: %v", err)
	}
	want := []string{
		`Connect("L:mvs")`,
		`Connect("Y:mvs:992")`,
		`Connect("lu1,lu2@mvs")`,
	}
	if diff := cmp.Diff(want, sentAfterStart(mock)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Connect(ctx, "bad host", "", nil); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("bad host error = %v", err)
	}
}

func TestWaitRendersCondition(t *testing.T) {
	s, mock := newStartedSession(t, Config{}, nil)
	ctx := context.Background()
	if _, err := s.Wait(ctx, 1500*time.Millisecond, WaitInputField); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := s.Wait(ctx, 0, WaitUnlock); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := s.Wait(ctx, 0, WaitCondition("Forever")); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("bad condition error = %v", err)
	}
	want := []string{"Wait(2,InputField)", "Wait(Unlock)"}
	if diff := cmp.Diff(want, sentAfterStart(mock)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
	if c, err := ParseWaitCondition("3270mode"); err != nil || c != Wait3270Mode {
		t.Fatalf("ParseWaitCondition = %v, %v", c, err)
	}
}

func TestTransferValidatesBeforeSending(t *testing.T) {
	s, mock := newStartedSession(t, Config{}, nil)
	ctx := context.Background()
	lrecl, err := command.Lrecl(80)
	if err != nil {
		t.Fatalf("Lrecl: %v", err)
	}
	req := command.TransferRequest{
		Direction: command.DirectionReceive,
		Mode:      command.TransferASCII,
		Host:      command.HostTSO,
		LocalFile: "/tmp/out.txt",
		HostFile:  "USER.DATA",
		Params:    []command.TransferParam{lrecl},
	}
	if _, err := s.Transfer(ctx, req, 0); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("receive with lrecl error = %v", err)
	}
	req.Direction = command.DirectionSend
	if _, err := s.Transfer(ctx, req, time.Minute); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	sent := sentAfterStart(mock)
	if len(sent) != 1 || !strings.HasPrefix(sent[0], "Transfer(direction=send,") {
		t.Fatalf("commands = %q", sent)
	}
}

const dumpStatus = "U F U C(mvs) I 2 2 3 1 0 0x0 -"

func dumpHandler(command string) (schema.Reply, error) {
	switch command {
	case "ReadBuffer(Ascii)":
		return backend.OKReply(dumpStatus, "SF(c0=e0) 48 49", "41 42 43"), nil
	case "ReadBuffer(Ebcdic)":
		return backend.OKReply(dumpStatus, "SF(c0=e0) c8 c9", "c1 c2 c3"), nil
	}
	return backend.OKReply(dumpStatus), nil
}

func TestReadBufferDecodes(t *testing.T) {
	s, _ := newStartedSession(t, Config{}, dumpHandler)
	buf, res, err := s.ReadBuffer(context.Background(), screen.ModeASCII)
	if err != nil || !res.Success {
		t.Fatalf("ReadBuffer = %+v, %v", res, err)
	}
	if buf.Rows() != 2 || buf.Columns() != 3 {
		t.Fatalf("shape = %dx%d", buf.Rows(), buf.Columns())
	}
	dump, err := buf.Dump()
	if err != nil || dump != " HI\nABC" {
		t.Fatalf("Dump = %q, %v", dump, err)
	}
	text, err := buf.Ascii(3)
	if err != nil || text != "ABC" {
		t.Fatalf("Ascii from cursor = %q, %v", text, err)
	}

	ebcdic, _, err := s.ReadBuffer(context.Background(), screen.ModeEBCDIC)
	if err != nil {
		t.Fatalf("ReadBuffer(Ebcdic): %v", err)
	}
	p, _ := ebcdic.Position(1, 0)
	if code, err := p.Ebcdic(); err != nil || code != 0xc1 {
		t.Fatalf("Ebcdic = %#x, %v", code, err)
	}
}

func TestReadBufferFailureHasNoBuffer(t *testing.T) {
	s, _ := newStartedSession(t, Config{}, func(command string) (schema.Reply, error) {
		if strings.HasPrefix(command, "ReadBuffer") {
			return backend.ErrorReply(dumpStatus, "not connected"), nil
		}
		return backend.OKReply(dumpStatus), nil
	})
	buf, res, err := s.ReadBuffer(context.Background(), screen.ModeASCII)
	if err != nil || buf != nil || res == nil || res.Success {
		t.Fatalf("ReadBuffer = %v, %+v, %v", buf, res, err)
	}
}

func TestCursorHonorsOrigin(t *testing.T) {
	s, _ := newStartedSession(t, Config{Origin: 1}, backend.StaticReply(backend.OKReply("U F U C(mvs) I 2 24 80 5 10 0x0 -")))
	c, res, err := s.Cursor(context.Background())
	if err != nil || !res.Success {
		t.Fatalf("Cursor = %+v, %v", res, err)
	}
	if c.Row() != 6 || c.Column() != 11 {
		t.Fatalf("cursor = %v, want (6,11)", c)
	}
}

func TestQuitClosesSession(t *testing.T) {
	mock := backend.NewMock(nil)
	mock.SetHandler(func(command string) (schema.Reply, error) {
		if command == "Quit()" {
			return schema.Reply{}, fmt.Errorf("%w: emulator exited", schema.ErrEndOfStream)
		}
		return backend.OKReply(backend.DefaultStatus), nil
	})
	s, err := NewSession(mock, Config{ExceptionMode: true})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Quit(context.Background()); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if _, err := s.Enter(context.Background()); !errors.Is(err, schema.ErrInvalidOperation) {
		t.Fatalf("Enter after Quit error = %v", err)
	}
}
