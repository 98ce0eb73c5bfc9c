package core

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/x3270script/schema"
)

const (
	statusIdxKeyboard = iota
	statusIdxFormatting
	statusIdxProtection
	statusIdxConnection
	statusIdxMode
	statusIdxModel
	statusIdxRows
	statusIdxCols
	statusIdxCursorRow
	statusIdxCursorCol
	statusIdxWindowID
	statusIdxTiming
	statusFields
)

// KeyboardState is the first status field.
type KeyboardState byte

const (
	KeyboardUnlocked KeyboardState = 'U'
	KeyboardLocked   KeyboardState = 'L'
	KeyboardError    KeyboardState = 'E'
)

// EmulatorMode is the fifth status field.
type EmulatorMode byte

const (
	Mode3270         EmulatorMode = 'I'
	ModeNVTLine      EmulatorMode = 'L'
	ModeNVTChar      EmulatorMode = 'C'
	ModeUnnegotiated EmulatorMode = 'P'
	ModeNotConnected EmulatorMode = 'N'
)

func (m EmulatorMode) String() string {
	switch m {
	case Mode3270:
		return "3270"
	case ModeNVTLine:
		return "nvt-line"
	case ModeNVTChar:
		return "nvt-char"
	case ModeUnnegotiated:
		return "unnegotiated"
	case ModeNotConnected:
		return "not-connected"
	default:
		return fmt.Sprintf("unknown(%c)", byte(m))
	}
}

// Status is a parsed emulator status line, for example
// "U F U C(host) I 4 24 80 0 0 0x0 0.012". Cursor values are 0-based as
// reported on the wire.
type Status struct {
	Raw          string
	Keyboard     KeyboardState
	Formatted    bool
	Protected    bool
	Host         string
	Mode         EmulatorMode
	Model        string
	Rows         int
	Columns      int
	CursorRow    int
	CursorColumn int
	WindowID     string
	// Timing is the command execution time in seconds, or "-".
	Timing string

	connected bool
}

// ParseStatus parses a twelve-field status line.
func ParseStatus(line string) (Status, error) {
	parts := strings.Fields(line)
	if len(parts) < statusFields {
		return Status{}, fmt.Errorf("%w: status line has %d fields: %q", schema.ErrInvalidArgument, len(parts), line)
	}
	st := Status{
		Raw:       line,
		Keyboard:  KeyboardState(parts[statusIdxKeyboard][0]),
		Formatted: parts[statusIdxFormatting] == "F",
		Protected: parts[statusIdxProtection] == "P",
		Mode:      EmulatorMode(parts[statusIdxMode][0]),
		Model:     parts[statusIdxModel],
		WindowID:  parts[statusIdxWindowID],
		Timing:    parts[statusIdxTiming],
	}
	conn := parts[statusIdxConnection]
	switch {
	case conn == "N":
	case strings.HasPrefix(conn, "C(") && strings.HasSuffix(conn, ")"):
		st.connected = true
		st.Host = conn[2 : len(conn)-1]
	default:
		return Status{}, fmt.Errorf("%w: status connection field %q", schema.ErrInvalidArgument, conn)
	}
	ints := []struct {
		idx int
		dst *int
	}{
		{statusIdxRows, &st.Rows},
		{statusIdxCols, &st.Columns},
		{statusIdxCursorRow, &st.CursorRow},
		{statusIdxCursorCol, &st.CursorColumn},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(parts[f.idx])
		if err != nil || n < 0 {
			return Status{}, fmt.Errorf("%w: status field %d %q", schema.ErrInvalidArgument, f.idx+1, parts[f.idx])
		}
		*f.dst = n
	}
	return st, nil
}

// Connected reports whether the emulator is connected to a host.
func (s Status) Connected() bool { return s.connected }

// KeyboardLocked reports a locked or errored keyboard.
func (s Status) KeyboardLocked() bool { return s.Keyboard != KeyboardUnlocked }

// In3270Mode reports a connection negotiated into 3270 mode.
func (s Status) In3270Mode() bool { return s.connected && s.Mode == Mode3270 }
