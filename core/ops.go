package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pkt.systems/x3270script/command"
	"pkt.systems/x3270script/schema"
	"pkt.systems/x3270script/screen"
)

const (
	maxPF = 24
	maxPA = 3
)

// WaitCondition names what Wait blocks for.
type WaitCondition string

const (
	WaitInputField WaitCondition = "InputField"
	WaitOutput     WaitCondition = "Output"
	Wait3270Mode   WaitCondition = "3270Mode"
	WaitNVTMode    WaitCondition = "NVTMode"
	WaitUnlock     WaitCondition = "Unlock"
	WaitDisconnect WaitCondition = "Disconnect"
)

// ParseWaitCondition accepts a condition name in any case.
func ParseWaitCondition(name string) (WaitCondition, error) {
	for _, c := range []WaitCondition{WaitInputField, WaitOutput, Wait3270Mode, WaitNVTMode, WaitUnlock, WaitDisconnect} {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: wait condition %q", schema.ErrInvalidArgument, name)
}

// Connect opens a host connection. Flags given here replace the session's
// default connect flags rather than adding to them.
func (s *Session) Connect(ctx context.Context, host, port string, lus []string, flags ...command.ConnectFlags) (*IoResult, error) {
	effective := s.cfg.ConnectFlags
	if len(flags) > 0 {
		effective = command.NoFlags
		for _, f := range flags {
			effective |= f
		}
	}
	target, err := command.ExpandHost(host, port, lus, effective)
	if err != nil {
		return nil, err
	}
	text, err := command.ActionRaw("Connect", target)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "connect", text, 0, false)
}

// Disconnect drops the host connection.
func (s *Session) Disconnect(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "Disconnect", false)
}

// Enter sends the Enter AID.
func (s *Session) Enter(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Enter", true) }

// Clear sends the Clear AID.
func (s *Session) Clear(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Clear", true) }

// Tab moves to the next input field.
func (s *Session) Tab(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Tab", true) }

// BackTab moves to the previous input field.
func (s *Session) BackTab(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "BackTab", true)
}

// Home moves to the first input field.
func (s *Session) Home(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Home", true) }

// EraseEOF erases from the cursor to the end of the field.
func (s *Session) EraseEOF(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "EraseEOF", true)
}

// EraseInput erases every input field.
func (s *Session) EraseInput(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "EraseInput", true)
}

// Reset unlocks the keyboard.
func (s *Session) Reset(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Reset", true) }

// Attn sends the attention key.
func (s *Session) Attn(ctx context.Context) (*IoResult, error) { return s.simple(ctx, "Attn", true) }

// SysReq sends the system request key.
func (s *Session) SysReq(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "SysReq", true)
}

// NewLine moves to the first input field of the next line.
func (s *Session) NewLine(ctx context.Context) (*IoResult, error) {
	return s.simple(ctx, "Newline", true)
}

// PF sends program function key n (1..24).
func (s *Session) PF(ctx context.Context, n int) (*IoResult, error) {
	if n < 1 || n > maxPF {
		return nil, fmt.Errorf("%w: PF key %d not in [1,%d]", schema.ErrOutOfRange, n, maxPF)
	}
	return s.numbered(ctx, "PF", n)
}

// PA sends program attention key n (1..3).
func (s *Session) PA(ctx context.Context, n int) (*IoResult, error) {
	if n < 1 || n > maxPA {
		return nil, fmt.Errorf("%w: PA key %d not in [1,%d]", schema.ErrOutOfRange, n, maxPA)
	}
	return s.numbered(ctx, "PA", n)
}

// String types text at the cursor.
func (s *Session) String(ctx context.Context, text string) (*IoResult, error) {
	cmd, err := command.String(text, false)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "string", cmd, 0, true)
}

// Key sends a single keysym, such as "a" or "0x41".
func (s *Session) Key(ctx context.Context, keysym string) (*IoResult, error) {
	cmd, err := command.Action("Key", keysym)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "key", cmd, 0, true)
}

// MoveCursor moves the cursor to (row, col) in the session origin.
func (s *Session) MoveCursor(ctx context.Context, row, col int) (*IoResult, error) {
	r, c, err := s.wireCoordinates(row, col)
	if err != nil {
		return nil, err
	}
	cmd, err := command.MoveCursor(r, c)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "move_cursor", cmd, 0, true)
}

// PutString moves to (row, col) and types text.
func (s *Session) PutString(ctx context.Context, row, col int, text string) (*IoResult, error) {
	return s.putString(ctx, "put_string", row, col, text, false)
}

// PutStringEOF moves to (row, col), erases to the end of the field and
// types text.
func (s *Session) PutStringEOF(ctx context.Context, row, col int, text string) (*IoResult, error) {
	return s.putString(ctx, "put_string_eof", row, col, text, true)
}

func (s *Session) putString(ctx context.Context, op string, row, col int, text string, eraseEOF bool) (*IoResult, error) {
	r, c, err := s.wireCoordinates(row, col)
	if err != nil {
		return nil, err
	}
	cmd, err := command.PutString(r, c, text, eraseEOF)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, op, cmd, 0, true)
}

// Wait blocks in the emulator until cond holds or timeout elapses. The
// command deadline is timeout plus the session default.
func (s *Session) Wait(ctx context.Context, timeout time.Duration, cond WaitCondition) (*IoResult, error) {
	if _, err := ParseWaitCondition(string(cond)); err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: wait timeout %s", schema.ErrOutOfRange, timeout)
	}
	args := []string{string(cond)}
	if timeout > 0 {
		secs := int(math.Ceil(timeout.Seconds()))
		args = append([]string{strconv.Itoa(secs)}, args...)
	}
	cmd, err := command.ActionRaw("Wait", args...)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "wait", cmd, timeout+s.cfg.Timeout, false)
}

// Query sends Query(keyword); an empty keyword lists every keyword.
func (s *Session) Query(ctx context.Context, keyword string) (*IoResult, error) {
	args := []string{}
	if keyword != "" {
		args = append(args, keyword)
	}
	cmd, err := command.Action("Query", args...)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "query", cmd, 0, false)
}

// Transfer starts an IND$FILE transfer.
func (s *Session) Transfer(ctx context.Context, req command.TransferRequest, timeout time.Duration) (*IoResult, error) {
	cmd, err := command.Transfer(req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "transfer", cmd, timeout, true)
}

// ReadBuffer dumps the screen in the given mode and decodes it. The buffer
// is nil when the command failed.
func (s *Session) ReadBuffer(ctx context.Context, mode screen.Mode) (*screen.Buffer, *IoResult, error) {
	cmd, err := command.ActionRaw("ReadBuffer", mode.String())
	if err != nil {
		return nil, nil, err
	}
	res, err := s.run(ctx, "read_buffer", cmd, 0, false)
	if err != nil || !res.Success {
		return nil, res, err
	}
	opts := screen.Options{Origin: s.cfg.Origin, Charset: s.cfg.Charset}
	if res.Status != nil {
		opts.Rows = res.Status.Rows
		opts.Columns = res.Status.Columns
		opts.CursorRow = res.Status.CursorRow
		opts.CursorColumn = res.Status.CursorColumn
	}
	buf, err := screen.Decode(mode, res.Result, opts)
	if err != nil {
		return nil, res, fmt.Errorf("decode screen dump: %w", err)
	}
	return buf, res, nil
}

// Cursor queries the emulator status and returns the cursor position in
// the session origin. The coordinates are nil when the query failed.
func (s *Session) Cursor(ctx context.Context) (*screen.Coordinates, *IoResult, error) {
	res, err := s.run(ctx, "cursor", "", 0, false)
	if err != nil || !res.Success {
		return nil, res, err
	}
	if res.Status == nil {
		return nil, res, fmt.Errorf("%w: reply has no status line", schema.ErrInvalidArgument)
	}
	st := res.Status
	c, err := screen.CoordinatesAt(st.Rows, st.Columns, s.cfg.Origin, st.CursorRow*st.Columns+st.CursorColumn)
	if err != nil {
		return nil, res, err
	}
	return c, res, nil
}

// Quit tells the emulator to exit and closes the session. The end of
// stream that follows is expected and not reported as a failure.
func (s *Session) Quit(ctx context.Context) error {
	_, err := s.run(ctx, "quit", "Quit()", 0, false)
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && (errors.Is(cmdErr.Err, schema.ErrEndOfStream) || errors.Is(cmdErr.Err, schema.ErrNotRunning)) {
		err = nil
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Session) simple(ctx context.Context, name string, gated bool) (*IoResult, error) {
	cmd, err := command.ActionRaw(name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, name, cmd, 0, gated)
}

func (s *Session) numbered(ctx context.Context, name string, n int) (*IoResult, error) {
	cmd, err := command.ActionRaw(name, strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, name, cmd, 0, true)
}

// wireCoordinates translates a caller (row, col) in the session origin to
// the 0-based protocol values, checking against the last known screen size.
func (s *Session) wireCoordinates(row, col int) (int, int, error) {
	origin := s.cfg.Origin
	if row < origin || col < origin {
		return 0, 0, fmt.Errorf("%w: (%d,%d) below origin %d", schema.ErrOutOfRange, row, col, origin)
	}
	if st, ok := s.Status(); ok && st.Rows > 0 && st.Columns > 0 {
		if row-origin >= st.Rows || col-origin >= st.Columns {
			return 0, 0, fmt.Errorf("%w: (%d,%d) outside %dx%d screen", schema.ErrOutOfRange, row, col, st.Rows, st.Columns)
		}
	}
	return row - origin, col - origin, nil
}
