package screen

import (
	"fmt"

	"pkt.systems/x3270script/schema"
)

// Mode is the ReadBuffer dump flavor.
type Mode int

const (
	// ModeASCII dumps cells as display characters.
	ModeASCII Mode = iota
	// ModeEBCDIC dumps cells as host code points.
	ModeEBCDIC
)

// String returns the ReadBuffer argument for the mode.
func (m Mode) String() string {
	if m == ModeEBCDIC {
		return "Ebcdic"
	}
	return "Ascii"
}

// PositionType classifies a buffer cell.
type PositionType int

const (
	PositionData PositionType = iota
	PositionFieldAttribute
	PositionDBCSRight
)

func (t PositionType) String() string {
	switch t {
	case PositionFieldAttribute:
		return "field-attribute"
	case PositionDBCSRight:
		return "dbcs-right"
	}
	return "data"
}

// Position is one decoded cell. Exactly one of the display character or
// the host code is meaningful, depending on the buffer mode.
type Position struct {
	kind  PositionType
	mode  Mode
	attrs FieldAttributes
	text  string
	code  uint16
	dbcs  bool
}

// Type returns the cell type.
func (p Position) Type() PositionType { return p.kind }

// Attributes returns the resolved attributes of the cell.
func (p Position) Attributes() FieldAttributes { return p.attrs }

// DBCS reports whether the cell is the left half of a double-byte pair.
func (p Position) DBCS() bool { return p.dbcs }

// Ascii returns the display character of a data cell in an ASCII dump.
func (p Position) Ascii() (string, error) {
	if p.mode != ModeASCII {
		return "", fmt.Errorf("%w: display character requested from %s buffer", schema.ErrWrongMode, p.mode)
	}
	if p.kind != PositionData {
		return "", fmt.Errorf("%w: character requested from %s cell", schema.ErrWrongMode, p.kind)
	}
	return p.text, nil
}

// Ebcdic returns the host code of a data cell in an EBCDIC dump. The left
// half of a double-byte pair carries both bytes.
func (p Position) Ebcdic() (uint16, error) {
	if p.mode != ModeEBCDIC {
		return 0, fmt.Errorf("%w: host code requested from %s buffer", schema.ErrWrongMode, p.mode)
	}
	if p.kind != PositionData {
		return 0, fmt.Errorf("%w: host code requested from %s cell", schema.ErrWrongMode, p.kind)
	}
	return p.code, nil
}

// Display renders the cell for text output: field attributes as a blank,
// the right half of a double-byte pair as nothing.
func (p Position) Display() string {
	switch p.kind {
	case PositionFieldAttribute:
		return " "
	case PositionDBCSRight:
		return ""
	}
	return p.text
}
