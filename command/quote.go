package command

import (
	"fmt"
	"strings"

	"pkt.systems/x3270script/schema"
)

// reserved lists the characters that force an argument to be quoted.
const reserved = " ,()\"\\"

// QuoteString renders text as a single action argument. Text without
// reserved or control characters is returned unchanged; anything else is
// wrapped in double quotes with embedded quotes and backslashes escaped.
func QuoteString(text string) (string, error) {
	return quote(text, true)
}

// QuoteStringRaw is QuoteString without backslash escaping, so x3270
// escape sequences embedded in text reach the emulator intact.
func QuoteStringRaw(text string) (string, error) {
	return quote(text, false)
}

// MustQuote is QuoteString for text known to be free of control characters.
func MustQuote(text string) string {
	out, err := QuoteString(text)
	if err != nil {
		panic(err)
	}
	return out
}

func quote(text string, escapeBackslash bool) (string, error) {
	needsQuotes := false
	var b strings.Builder
	b.Grow(len(text) + 2)
	for _, r := range text {
		switch r {
		case '"':
			b.WriteString(`\"`)
			needsQuotes = true
		case '\\':
			if escapeBackslash {
				b.WriteString(`\\`)
			} else {
				b.WriteRune(r)
			}
			needsQuotes = true
		case ' ', ',', '(', ')':
			b.WriteRune(r)
			needsQuotes = true
		case '\r':
			b.WriteString(`\r`)
			needsQuotes = true
		case '\n':
			b.WriteString(`\n`)
			needsQuotes = true
		case '\f':
			b.WriteString(`\f`)
			needsQuotes = true
		case '\t':
			b.WriteString(`\t`)
			needsQuotes = true
		case '\b':
			b.WriteString(`\b`)
			needsQuotes = true
		default:
			if r < 0x20 {
				return "", fmt.Errorf("%w: control character %U in %q", schema.ErrInvalidArgument, r, text)
			}
			b.WriteRune(r)
		}
	}
	if !needsQuotes {
		return text, nil
	}
	return `"` + b.String() + `"`, nil
}

func needsQuoting(text string) bool {
	return strings.ContainsAny(text, reserved)
}
