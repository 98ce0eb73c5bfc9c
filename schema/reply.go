package schema

// Reply is one response group read from the emulator: the data lines
// (without their "data: " prefix), the status line and the final verdict.
type Reply struct {
	Data   []string
	Status string
	OK     bool
}
