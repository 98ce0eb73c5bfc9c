package screen

import (
	"fmt"

	"pkt.systems/x3270script/schema"
)

// Coordinates is a (row, column) pair bound to a buffer's dimensions and
// coordinate origin. Row and column are expressed in that origin; the
// linear address is always 0-based.
type Coordinates struct {
	rows   int
	cols   int
	origin int
	row    int
	col    int
}

// NewCoordinates validates (row, col) against a rows x cols buffer whose
// addressing starts at origin (0 or 1).
func NewCoordinates(rows, cols, origin, row, col int) (*Coordinates, error) {
	if err := checkGeometry(rows, cols, origin); err != nil {
		return nil, err
	}
	c := &Coordinates{rows: rows, cols: cols, origin: origin}
	if err := c.SetRow(row); err != nil {
		return nil, err
	}
	if err := c.SetColumn(col); err != nil {
		return nil, err
	}
	return c, nil
}

// CoordinatesAt returns the coordinates of a 0-based buffer address.
func CoordinatesAt(rows, cols, origin, addr int) (*Coordinates, error) {
	if err := checkGeometry(rows, cols, origin); err != nil {
		return nil, err
	}
	if addr < 0 || addr >= rows*cols {
		return nil, fmt.Errorf("%w: address %d outside %dx%d buffer", schema.ErrOutOfRange, addr, rows, cols)
	}
	return &Coordinates{
		rows:   rows,
		cols:   cols,
		origin: origin,
		row:    addr/cols + origin,
		col:    addr%cols + origin,
	}, nil
}

func checkGeometry(rows, cols, origin int) error {
	if origin != 0 && origin != 1 {
		return fmt.Errorf("%w: origin %d must be 0 or 1", schema.ErrInvalidArgument, origin)
	}
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: buffer dimensions %dx%d", schema.ErrInvalidArgument, rows, cols)
	}
	return nil
}

// Row returns the row in the bound origin.
func (c *Coordinates) Row() int { return c.row }

// Column returns the column in the bound origin.
func (c *Coordinates) Column() int { return c.col }

// Origin returns the coordinate origin.
func (c *Coordinates) Origin() int { return c.origin }

// SetRow moves to row, which must lie in [origin, origin+rows-1].
func (c *Coordinates) SetRow(row int) error {
	if row < c.origin || row > c.origin+c.rows-1 {
		return fmt.Errorf("%w: row %d not in [%d,%d]", schema.ErrOutOfRange, row, c.origin, c.origin+c.rows-1)
	}
	c.row = row
	return nil
}

// SetColumn moves to col, which must lie in [origin, origin+cols-1].
func (c *Coordinates) SetColumn(col int) error {
	if col < c.origin || col > c.origin+c.cols-1 {
		return fmt.Errorf("%w: column %d not in [%d,%d]", schema.ErrOutOfRange, col, c.origin, c.origin+c.cols-1)
	}
	c.col = col
	return nil
}

// Address returns the 0-based linear buffer address.
func (c *Coordinates) Address() int {
	return (c.row-c.origin)*c.cols + (c.col - c.origin)
}

// Increment moves one cell forward, wrapping from the last cell to the first.
func (c *Coordinates) Increment() {
	c.setAddress((c.Address() + 1) % (c.rows * c.cols))
}

// Decrement moves one cell back, wrapping from the first cell to the last.
func (c *Coordinates) Decrement() {
	size := c.rows * c.cols
	c.setAddress((c.Address() - 1 + size) % size)
}

func (c *Coordinates) setAddress(addr int) {
	c.row = addr/c.cols + c.origin
	c.col = addr%c.cols + c.origin
}

// Clone returns an independent copy.
func (c *Coordinates) Clone() *Coordinates {
	out := *c
	return &out
}

// Compare orders c and other in row-major order, returning -1, 0 or 1.
// Both must be bound to the same geometry and origin.
func (c *Coordinates) Compare(other *Coordinates) (int, error) {
	if other == nil {
		return 0, fmt.Errorf("%w: compare against nil coordinates", schema.ErrInvalidArgument)
	}
	if c.rows != other.rows || c.cols != other.cols || c.origin != other.origin {
		return 0, fmt.Errorf("%w: compare %dx%d origin-%d coordinates with %dx%d origin-%d", schema.ErrInvalidArgument,
			c.rows, c.cols, c.origin, other.rows, other.cols, other.origin)
	}
	a, b := c.Address(), other.Address()
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	}
	return 0, nil
}

// Equal reports whether c and other address the same cell.
func (c *Coordinates) Equal(other *Coordinates) (bool, error) {
	n, err := c.Compare(other)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Less reports whether c precedes other.
func (c *Coordinates) Less(other *Coordinates) (bool, error) {
	n, err := c.Compare(other)
	if err != nil {
		return false, err
	}
	return n < 0, nil
}

// Greater reports whether c follows other.
func (c *Coordinates) Greater(other *Coordinates) (bool, error) {
	n, err := c.Compare(other)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Coordinates) String() string {
	return fmt.Sprintf("(%d,%d)", c.row, c.col)
}
