package screen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/x3270script/schema"
)

func decodeASCII(t *testing.T, opts Options, lines ...string) *Buffer {
	t.Helper()
	b, err := Decode(ModeASCII, lines, opts)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return b
}

func cellText(t *testing.T, b *Buffer, row, col int) string {
	t.Helper()
	p, err := b.Position(row, col)
	if err != nil {
		t.Fatalf("Position(%d,%d): %v", row, col, err)
	}
	text, err := p.Ascii()
	if err != nil {
		t.Fatalf("Ascii(%d,%d): %v", row, col, err)
	}
	return text
}

func TestDecodeStartFieldRow(t *testing.T) {
	b := decodeASCII(t, Options{Rows: 1, Columns: 5}, "SF(c0=e0) 41 42 SF(c0=e0) 43")
	p0, _ := b.Position(0, 0)
	if p0.Type() != PositionFieldAttribute {
		t.Fatalf("cell 0 type = %v", p0.Type())
	}
	if _, err := p0.Ascii(); !errors.Is(err, schema.ErrWrongMode) {
		t.Fatalf("reading a field attribute: err = %v", err)
	}
	attrs := p0.Attributes()
	if !attrs.Protected() || attrs.Intensity() != IntensityNormal || attrs.Foreground != ColorDefault || attrs.Highlighting != HighlightDefault {
		t.Fatalf("cell 0 attributes = %+v", attrs)
	}
	if got := cellText(t, b, 0, 1); got != "A" {
		t.Fatalf("cell 1 = %q, want A", got)
	}
	if got := cellText(t, b, 0, 2); got != "B" {
		t.Fatalf("cell 2 = %q, want B", got)
	}
	p3, _ := b.Position(0, 3)
	if p3.Type() != PositionFieldAttribute {
		t.Fatalf("cell 3 type = %v", p3.Type())
	}
	if b.Size() != 5 {
		t.Fatalf("Size = %d", b.Size())
	}
}

func TestDecodeDerivesShape(t *testing.T) {
	b := decodeASCII(t, Options{}, "SF(c0=e0) 41 42 SF(c0=e0) 43", "41 42 43 44 45")
	if b.Rows() != 2 || b.Columns() != 5 {
		t.Fatalf("shape = %dx%d", b.Rows(), b.Columns())
	}
	if got := cellText(t, b, 0, 4); got != "C" {
		t.Fatalf("cell 4 = %q", got)
	}
}

func TestSetAttributeChangesOnlyNamedAttribute(t *testing.T) {
	b := decodeASCII(t, Options{}, "SF(c0=08) 41 SA(42=f2) 42 43 SF(c0=20,41=f1) 44")
	p1, _ := b.Position(0, 1)
	p2, _ := b.Position(0, 2)
	p3, _ := b.Position(0, 3)
	p5, _ := b.Position(0, 5)
	if p1.Attributes().Foreground != ColorDefault {
		t.Fatalf("cell 1 foreground = %v", p1.Attributes().Foreground)
	}
	for _, p := range []Position{p2, p3} {
		a := p.Attributes()
		if a.Foreground != ColorRed || a.Intensity() != IntensityHigh {
			t.Fatalf("SA cell attributes = %+v", a)
		}
	}
	want := FieldAttributes{Flags: 0x20, Highlighting: HighlightBlink}
	if diff := cmp.Diff(want, p5.Attributes()); diff != "" {
		t.Fatalf("start field did not reset attributes (-want +got):\n%s", diff)
	}
}

func TestSetAttributeToleratesBadPairs(t *testing.T) {
	b := decodeASCII(t, Options{}, "SF(c0=00) SA(99=01,42=zz,41=f4,junk) 41")
	p, _ := b.Position(0, 1)
	a := p.Attributes()
	if a.Highlighting != HighlightUnderscore || a.Foreground != ColorDefault {
		t.Fatalf("attributes = %+v", a)
	}
}

func TestFieldAttributesWrapAround(t *testing.T) {
	b := decodeASCII(t, Options{}, "41 42 SF(c0=00,42=f4) SA(41=f1) 43")
	for col := 0; col < 2; col++ {
		p, _ := b.Position(0, col)
		a := p.Attributes()
		if a.Foreground != ColorGreen {
			t.Fatalf("cell %d foreground = %v, want green", col, a.Foreground)
		}
		if a.Highlighting != HighlightDefault {
			t.Fatalf("cell %d carried a set-attribute around the buffer: %v", col, a.Highlighting)
		}
	}
	p, _ := b.Position(0, 3)
	if p.Attributes().Highlighting != HighlightBlink {
		t.Fatalf("cell 3 highlighting = %v", p.Attributes().Highlighting)
	}
}

func TestZeroIntensityBlanksText(t *testing.T) {
	b := decodeASCII(t, Options{}, "SF(c0=0c) 50 41 53 53 SF(c0=00) 4f 4b")
	got, err := b.AsciiAt(0, 1, 4)
	if err != nil {
		t.Fatalf("AsciiAt: %v", err)
	}
	if got != "    " {
		t.Fatalf("hidden text = %q", got)
	}
	if got := cellText(t, b, 0, 6); got != "O" {
		t.Fatalf("visible text = %q", got)
	}
}

func TestDecodeEbcdicDoubleByte(t *testing.T) {
	b, err := Decode(ModeEBCDIC, []string{"SF(c0=00) 0e 45 41 45 42 0f c1"}, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	code := func(col int) uint16 {
		t.Helper()
		p, _ := b.Position(0, col)
		v, err := p.Ebcdic()
		if err != nil {
			t.Fatalf("Ebcdic(%d): %v", col, err)
		}
		return v
	}
	if code(1) != 0x0e || code(6) != 0x0f || code(7) != 0xc1 {
		t.Fatalf("single-byte codes: %#x %#x %#x", code(1), code(6), code(7))
	}
	if code(2) != 0x4541 || code(4) != 0x4542 {
		t.Fatalf("double-byte codes: %#x %#x", code(2), code(4))
	}
	left, _ := b.Position(0, 2)
	if !left.DBCS() {
		t.Fatalf("expected left half marked DBCS")
	}
	for _, col := range []int{3, 5} {
		p, _ := b.Position(0, col)
		if p.Type() != PositionDBCSRight {
			t.Fatalf("cell %d type = %v", col, p.Type())
		}
		if _, err := p.Ebcdic(); !errors.Is(err, schema.ErrWrongMode) {
			t.Fatalf("reading right half: err = %v", err)
		}
	}
	if _, err := left.Ascii(); !errors.Is(err, schema.ErrWrongMode) {
		t.Fatalf("Ascii on EBCDIC cell: err = %v", err)
	}
	if _, err := b.AsciiAt(0, 0, 1); !errors.Is(err, schema.ErrWrongMode) {
		t.Fatalf("AsciiAt on EBCDIC buffer: err = %v", err)
	}
	if _, err := b.Dump(); !errors.Is(err, schema.ErrWrongMode) {
		t.Fatalf("Dump on EBCDIC buffer: err = %v", err)
	}
}

func TestDecodeAsciiDoubleByte(t *testing.T) {
	b := decodeASCII(t, Options{}, "e4b8ad - 41")
	left, _ := b.Position(0, 0)
	if !left.DBCS() {
		t.Fatalf("expected DBCS left half")
	}
	right, _ := b.Position(0, 1)
	if right.Type() != PositionDBCSRight {
		t.Fatalf("cell 1 type = %v", right.Type())
	}
	got, err := b.AsciiAt(0, 0, 3)
	if err != nil {
		t.Fatalf("AsciiAt: %v", err)
	}
	if got != "中A" {
		t.Fatalf("text = %q", got)
	}
}

func TestDecodeGraphicEscape(t *testing.T) {
	b, err := Decode(ModeEBCDIC, []string{"GE(ad) c1"}, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ge, _ := b.Position(0, 0)
	if ge.Attributes().CharacterSet != CharsetAPL {
		t.Fatalf("GE charset = %#x", ge.Attributes().CharacterSet)
	}
	if v, _ := ge.Ebcdic(); v != 0xad {
		t.Fatalf("GE code = %#x", v)
	}
	next, _ := b.Position(0, 1)
	if next.Attributes().CharacterSet != CharsetDefault {
		t.Fatalf("GE leaked charset to next cell")
	}
}

func TestDecodeCharset(t *testing.T) {
	b := decodeASCII(t, Options{Charset: "iso-8859-1"}, "e9 41")
	if got := cellText(t, b, 0, 0); got != "é" {
		t.Fatalf("latin1 cell = %q", got)
	}
	if _, err := Decode(ModeASCII, []string{"41"}, Options{Charset: "no-such-charset"}); !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("unknown charset error = %v", err)
	}
}

func TestDecodeRejectsMalformedData(t *testing.T) {
	for _, line := range []string{"41 zz", "414", "GE(zz)"} {
		if _, err := Decode(ModeASCII, []string{line}, Options{}); !errors.Is(err, schema.ErrInvalidArgument) {
			t.Fatalf("Decode(%q) error = %v", line, err)
		}
	}
}

func TestDecodeRejectsRowsWiderThanGeometry(t *testing.T) {
	_, err := Decode(ModeASCII, []string{"41 42", "43 44 45 46"}, Options{Rows: 2, Columns: 3})
	if !errors.Is(err, schema.ErrInvalidArgument) {
		t.Fatalf("Decode error = %v, want invalid argument", err)
	}
	// Set-attribute orders do not occupy a cell.
	if _, err := Decode(ModeASCII, []string{"41 SA(41=f1) 42 43"}, Options{Rows: 1, Columns: 3}); err != nil {
		t.Fatalf("Decode with set-attribute: %v", err)
	}
}

func TestDecodeFillsShortRows(t *testing.T) {
	b := decodeASCII(t, Options{Rows: 2, Columns: 3}, "41", "42 43 44")
	got, err := b.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got != "A  \nBCD" {
		t.Fatalf("Dump = %q", got)
	}
}
