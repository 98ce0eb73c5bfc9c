package screen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"pkt.systems/x3270script/schema"
)

const (
	ebcdicShiftOut = 0x0e
	ebcdicShiftIn  = 0x0f
)

// Options describe the geometry and context of a dump.
type Options struct {
	// Rows and Columns default to the dump's own shape when zero.
	Rows    int
	Columns int
	// Origin is the coordinate origin exposed by the buffer (0 or 1).
	Origin int
	// CursorRow and CursorColumn are 0-based, as reported by the status line.
	CursorRow    int
	CursorColumn int
	// Charset names the encoding of ASCII-mode bytes; empty means UTF-8.
	Charset string
}

type placedToken struct {
	addr int
	tok  token
}

// Decode builds a Buffer from the data lines of a ReadBuffer response.
func Decode(mode Mode, lines []string, opts Options) (*Buffer, error) {
	if mode != ModeASCII && mode != ModeEBCDIC {
		return nil, fmt.Errorf("%w: dump mode %d", schema.ErrInvalidArgument, mode)
	}
	rows, cols := opts.Rows, opts.Columns
	if rows == 0 {
		rows = len(lines)
	}
	if cols == 0 && len(lines) > 0 {
		n, err := countCells(lines[0])
		if err != nil {
			return nil, err
		}
		cols = n
	}
	if err := checkGeometry(rows, cols, opts.Origin); err != nil {
		return nil, err
	}
	textDecoder, err := charsetDecoder(opts.Charset)
	if err != nil {
		return nil, err
	}

	stream, err := placeTokens(lines, rows, cols)
	if err != nil {
		return nil, err
	}

	b := &Buffer{
		mode:   mode,
		rows:   rows,
		cols:   cols,
		origin: opts.Origin,
		cells:  make([]Position, rows*cols),
	}
	if opts.CursorRow >= 0 && opts.CursorRow < rows && opts.CursorColumn >= 0 && opts.CursorColumn < cols {
		b.cursor = opts.CursorRow*cols + opts.CursorColumn
	}

	// The buffer is circular: cells ahead of the first start-field belong
	// to the last field. Set-attribute orders are not carried around.
	cur := DefaultAttributes()
	for i := len(stream) - 1; i >= 0; i-- {
		if stream[i].tok.kind == tokenStartField {
			cur = fieldAttributes(stream[i].tok.attrs)
			break
		}
	}
	initial := cur

	filled := make([]bool, len(b.cells))
	inDBCS := false
	left := -1
	for _, pt := range stream {
		tok := pt.tok
		if tok.kind == tokenSetAttribute {
			for _, pair := range tok.attrs {
				cur.apply(pair.kind, pair.value)
			}
			continue
		}
		addr := pt.addr
		filled[addr] = true
		cell := Position{kind: PositionData, mode: mode, attrs: cur}
		switch tok.kind {
		case tokenStartField:
			cur = fieldAttributes(tok.attrs)
			cell.kind = PositionFieldAttribute
			cell.attrs = cur
			b.fields = append(b.fields, addr)
			inDBCS = false
			left = -1
		case tokenGraphicEscape:
			cell.attrs.CharacterSet = CharsetAPL
			cell.code = uint16(tok.data[0])
			cell.text = displayText(cur, decodeBytes(textDecoder, tok.data))
		case tokenDBCSRight:
			cell.kind = PositionDBCSRight
			prev := (addr - 1 + len(b.cells)) % len(b.cells)
			if b.cells[prev].kind == PositionData {
				b.cells[prev].dbcs = true
			}
		case tokenData:
			if mode == ModeASCII {
				cell.text = displayText(cur, decodeBytes(textDecoder, tok.data))
				break
			}
			if len(tok.data) != 1 {
				return nil, fmt.Errorf("%w: multi-byte token at address %d in EBCDIC dump", schema.ErrInvalidArgument, addr)
			}
			code := tok.data[0]
			cell.code = uint16(code)
			switch {
			case code == ebcdicShiftOut:
				inDBCS = true
				left = -1
			case code == ebcdicShiftIn:
				inDBCS = false
				left = -1
			case inDBCS && left < 0:
				cell.dbcs = true
				left = addr
			case inDBCS:
				b.cells[left].code = b.cells[left].code<<8 | uint16(code)
				cell.kind = PositionDBCSRight
				cell.code = 0
				left = -1
			}
		}
		b.cells[addr] = cell
	}

	// Short rows leave gaps; they read as blanks carrying the attributes
	// of the cell before them.
	for addr := range b.cells {
		if filled[addr] {
			continue
		}
		attrs := initial
		if addr > 0 {
			attrs = b.cells[addr-1].attrs
		}
		b.cells[addr] = Position{kind: PositionData, mode: mode, attrs: attrs, text: " ", code: 0x40}
	}
	return b, nil
}

func placeTokens(lines []string, rows, cols int) ([]placedToken, error) {
	stream := make([]placedToken, 0, rows*cols)
	for r := 0; r < rows && r < len(lines); r++ {
		sc := newTokenScanner(lines[r])
		col := 0
		for {
			tok, ok, err := sc.Next()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r, err)
			}
			if !ok {
				break
			}
			if !tok.kind.occupiesCell() {
				stream = append(stream, placedToken{addr: -1, tok: tok})
				continue
			}
			if col >= cols {
				return nil, fmt.Errorf("%w: row %d is wider than %d columns", schema.ErrInvalidArgument, r, cols)
			}
			stream = append(stream, placedToken{addr: r*cols + col, tok: tok})
			col++
		}
	}
	return stream, nil
}

func countCells(line string) (int, error) {
	sc := newTokenScanner(line)
	n := 0
	for {
		tok, ok, err := sc.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		if tok.kind.occupiesCell() {
			n++
		}
	}
}

func fieldAttributes(pairs []attrPair) FieldAttributes {
	attrs := DefaultAttributes()
	for _, pair := range pairs {
		attrs.apply(pair.kind, pair.value)
	}
	return attrs
}

func charsetDecoder(name string) (*encoding.Decoder, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: charset %q: %v", schema.ErrInvalidArgument, name, err)
	}
	return enc.NewDecoder(), nil
}

func decodeBytes(dec *encoding.Decoder, data []byte) string {
	if dec != nil {
		if out, err := dec.Bytes(data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return string(utf8.RuneError)
}

// displayText maps a decoded character to what the cell shows: hidden
// fields and control characters read as a blank.
func displayText(attrs FieldAttributes, text string) string {
	if attrs.Hidden() || text == "" {
		return " "
	}
	r, _ := utf8.DecodeRuneInString(text)
	if r < 0x20 || r == 0x7f {
		return " "
	}
	return text
}
