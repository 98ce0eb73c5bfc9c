package command

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/x3270script/schema"
)

// Action renders name(arg,...) with every argument passed through QuoteString.
func Action(name string, args ...string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		q, err := QuoteString(arg)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return ActionRaw(name, quoted...)
}

// ActionRaw renders name(arg,...) with arguments that are already encoded.
func ActionRaw(name string, args ...string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return name + "(" + strings.Join(args, ",") + ")", nil
}

// Join space-joins primitive commands into one multi-part command line,
// preserving their order.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, " ")
}

// MoveCursor renders MoveCursor with 0-based protocol coordinates.
func MoveCursor(row, col int) (string, error) {
	if row < 0 || col < 0 {
		return "", fmt.Errorf("%w: cursor (%d,%d)", schema.ErrOutOfRange, row, col)
	}
	return ActionRaw("MoveCursor", strconv.Itoa(row), strconv.Itoa(col))
}

// String renders a String action for text; backslashes are escaped
// unless raw is set.
func String(text string, raw bool) (string, error) {
	var (
		q   string
		err error
	)
	if raw {
		q, err = QuoteStringRaw(text)
	} else {
		q, err = QuoteString(text)
	}
	if err != nil {
		return "", err
	}
	return ActionRaw("String", q)
}

// PutString renders the sequence that moves to (row,col) and types text,
// optionally erasing to end of field first. Coordinates are 0-based.
func PutString(row, col int, text string, eraseEOF bool) (string, error) {
	move, err := MoveCursor(row, col)
	if err != nil {
		return "", err
	}
	str, err := String(text, false)
	if err != nil {
		return "", err
	}
	erase := ""
	if eraseEOF {
		erase = "EraseEOF()"
	}
	return Join(move, erase, str), nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty action name", schema.ErrInvalidArgument)
	}
	for i, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_' || r == '-'):
		default:
			return fmt.Errorf("%w: malformed action name %q", schema.ErrInvalidArgument, name)
		}
	}
	return nil
}
