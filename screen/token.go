package screen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/x3270script/schema"
)

type tokenKind int

const (
	tokenData tokenKind = iota
	tokenStartField
	tokenSetAttribute
	tokenGraphicEscape
	tokenDBCSRight
)

// occupiesCell reports whether the token is placed in a buffer cell.
func (k tokenKind) occupiesCell() bool {
	return k != tokenSetAttribute
}

type attrPair struct {
	kind  byte
	value byte
}

type token struct {
	kind  tokenKind
	data  []byte
	attrs []attrPair
}

// tokenScanner splits one dump row into tokens lazily.
type tokenScanner struct {
	fields []string
	pos    int
}

func newTokenScanner(line string) *tokenScanner {
	return &tokenScanner{fields: strings.Fields(line)}
}

// Next returns the next token; ok is false at end of row.
func (s *tokenScanner) Next() (tok token, ok bool, err error) {
	if s.pos >= len(s.fields) {
		return token{}, false, nil
	}
	raw := s.fields[s.pos]
	s.pos++
	tok, err = parseToken(raw)
	if err != nil {
		return token{}, false, err
	}
	return tok, true, nil
}

func parseToken(raw string) (token, error) {
	switch {
	case raw == "-":
		return token{kind: tokenDBCSRight}, nil
	case strings.HasPrefix(raw, "SF(") && strings.HasSuffix(raw, ")"):
		return token{kind: tokenStartField, attrs: parseAttrList(raw[3 : len(raw)-1])}, nil
	case strings.HasPrefix(raw, "SA(") && strings.HasSuffix(raw, ")"):
		return token{kind: tokenSetAttribute, attrs: parseAttrList(raw[3 : len(raw)-1])}, nil
	case strings.HasPrefix(raw, "GE(") && strings.HasSuffix(raw, ")"):
		b, err := parseByte(raw[3 : len(raw)-1])
		if err != nil {
			return token{}, fmt.Errorf("%w: graphic escape %q", schema.ErrInvalidArgument, raw)
		}
		return token{kind: tokenGraphicEscape, data: []byte{b}}, nil
	}
	if len(raw)%2 != 0 {
		return token{}, fmt.Errorf("%w: dump token %q", schema.ErrInvalidArgument, raw)
	}
	data, err := hex.DecodeString(raw)
	if err != nil {
		return token{}, fmt.Errorf("%w: dump token %q", schema.ErrInvalidArgument, raw)
	}
	return token{kind: tokenData, data: data}, nil
}

// parseAttrList decodes "c0=e0,41=f1". Malformed pairs are skipped.
func parseAttrList(list string) []attrPair {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]attrPair, 0, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		kind, err := parseByte(k)
		if err != nil {
			continue
		}
		value, err := parseByte(v)
		if err != nil {
			continue
		}
		out = append(out, attrPair{kind: kind, value: value})
	}
	return out
}

func parseByte(text string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(text), 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(n), nil
}
