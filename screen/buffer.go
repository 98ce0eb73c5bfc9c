package screen

import (
	"fmt"
	"strings"

	"pkt.systems/x3270script/schema"
)

// Buffer is an immutable decoded screen dump.
type Buffer struct {
	mode   Mode
	rows   int
	cols   int
	origin int
	cursor int
	cells  []Position
	fields []int
}

// Field describes one formatted field.
type Field struct {
	// Start addresses the field attribute cell.
	Start      *Coordinates
	Attributes FieldAttributes
	// Length counts the data cells up to the next field attribute.
	Length int
	// Text is the field contents; empty for EBCDIC buffers.
	Text string
}

// Mode returns the dump mode.
func (b *Buffer) Mode() Mode { return b.mode }

// Rows returns the number of rows.
func (b *Buffer) Rows() int { return b.rows }

// Columns returns the number of columns.
func (b *Buffer) Columns() int { return b.cols }

// Origin returns the coordinate origin.
func (b *Buffer) Origin() int { return b.origin }

// Size returns the number of cells.
func (b *Buffer) Size() int { return len(b.cells) }

// Formatted reports whether the buffer holds any field attributes.
func (b *Buffer) Formatted() bool { return len(b.fields) > 0 }

// Cursor returns the cursor position reported with the dump.
func (b *Buffer) Cursor() *Coordinates {
	c, _ := CoordinatesAt(b.rows, b.cols, b.origin, b.cursor)
	return c
}

// Coordinates returns validated coordinates bound to this buffer.
func (b *Buffer) Coordinates(row, col int) (*Coordinates, error) {
	return NewCoordinates(b.rows, b.cols, b.origin, row, col)
}

// Position returns the cell at (row, col).
func (b *Buffer) Position(row, col int) (Position, error) {
	c, err := b.Coordinates(row, col)
	if err != nil {
		return Position{}, err
	}
	return b.cells[c.Address()], nil
}

// At returns the cell addressed by c.
func (b *Buffer) At(c *Coordinates) (Position, error) {
	if err := b.owns(c); err != nil {
		return Position{}, err
	}
	return b.cells[c.Address()], nil
}

func (b *Buffer) owns(c *Coordinates) error {
	if c == nil {
		return fmt.Errorf("%w: nil coordinates", schema.ErrInvalidArgument)
	}
	if c.rows != b.rows || c.cols != b.cols || c.origin != b.origin {
		return fmt.Errorf("%w: coordinates bound to a %dx%d origin-%d buffer", schema.ErrInvalidArgument, c.rows, c.cols, c.origin)
	}
	return nil
}

func (b *Buffer) requireASCII() error {
	if b.mode != ModeASCII {
		return fmt.Errorf("%w: text requested from %s buffer", schema.ErrWrongMode, b.mode)
	}
	return nil
}

// Ascii returns count cells of text starting at the cursor.
func (b *Buffer) Ascii(count int) (string, error) {
	if err := b.requireASCII(); err != nil {
		return "", err
	}
	return b.text(b.cursor, count)
}

// AsciiAt returns count cells of text starting at (row, col).
func (b *Buffer) AsciiAt(row, col, count int) (string, error) {
	if err := b.requireASCII(); err != nil {
		return "", err
	}
	if count == 0 {
		return "", nil
	}
	c, err := b.Coordinates(row, col)
	if err != nil {
		return "", err
	}
	return b.text(c.Address(), count)
}

func (b *Buffer) text(start, count int) (string, error) {
	if count == 0 {
		return "", nil
	}
	if count < 0 || start+count > len(b.cells) {
		return "", fmt.Errorf("%w: %d cells from address %d in %d-cell buffer", schema.ErrOutOfRange, count, start, len(b.cells))
	}
	var sb strings.Builder
	for _, cell := range b.cells[start : start+count] {
		sb.WriteString(cell.Display())
	}
	return sb.String(), nil
}

// AsciiRect returns the text of a nrows x ncols rectangle whose top-left
// cell is (row, col), one line per row.
func (b *Buffer) AsciiRect(row, col, nrows, ncols int) (string, error) {
	if err := b.requireASCII(); err != nil {
		return "", err
	}
	if nrows == 0 || ncols == 0 {
		return "", nil
	}
	if nrows < 0 || ncols < 0 {
		return "", fmt.Errorf("%w: rectangle %dx%d", schema.ErrOutOfRange, nrows, ncols)
	}
	top, err := b.Coordinates(row, col)
	if err != nil {
		return "", err
	}
	if _, err := b.Coordinates(row+nrows-1, col+ncols-1); err != nil {
		return "", err
	}
	lines := make([]string, 0, nrows)
	for r := 0; r < nrows; r++ {
		line, err := b.text(top.Address()+r*b.cols, ncols)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// AsciiField returns the text of the field containing c, from c (or the
// first cell after it, when c is a field attribute) up to the next field
// attribute. A nil c starts at the first cell. In an unformatted buffer
// the text runs to the end of the buffer.
func (b *Buffer) AsciiField(c *Coordinates) (string, error) {
	if err := b.requireASCII(); err != nil {
		return "", err
	}
	from, n, err := b.fieldSpan(c)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(b.cells[(from+i)%len(b.cells)].Display())
	}
	return sb.String(), nil
}

// FieldLength returns the number of cells AsciiField would cover.
func (b *Buffer) FieldLength(c *Coordinates) (int, error) {
	_, n, err := b.fieldSpan(c)
	return n, err
}

func (b *Buffer) fieldSpan(c *Coordinates) (int, int, error) {
	start := 0
	if c != nil {
		if err := b.owns(c); err != nil {
			return 0, 0, err
		}
		start = c.Address()
	}
	size := len(b.cells)
	if !b.Formatted() {
		return start, size - start, nil
	}
	from := start
	if b.cells[from].kind == PositionFieldAttribute {
		from = (from + 1) % size
	}
	n := 0
	for n < size && b.cells[(from+n)%size].kind != PositionFieldAttribute {
		n++
	}
	return from, n, nil
}

// Fields lists the formatted fields in buffer order.
func (b *Buffer) Fields() []Field {
	out := make([]Field, 0, len(b.fields))
	size := len(b.cells)
	for i, addr := range b.fields {
		next := b.fields[(i+1)%len(b.fields)]
		length := (next - addr - 1 + size) % size
		start, _ := CoordinatesAt(b.rows, b.cols, b.origin, addr)
		f := Field{Start: start, Attributes: b.cells[addr].attrs, Length: length}
		if b.mode == ModeASCII {
			var sb strings.Builder
			for j := 1; j <= length; j++ {
				sb.WriteString(b.cells[(addr+j)%size].Display())
			}
			f.Text = sb.String()
		}
		out = append(out, f)
	}
	return out
}

// Dump renders every row, with field attributes shown as blanks.
func (b *Buffer) Dump() (string, error) {
	if err := b.requireASCII(); err != nil {
		return "", err
	}
	lines := make([]string, 0, b.rows)
	for r := 0; r < b.rows; r++ {
		line, err := b.text(r*b.cols, b.cols)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
