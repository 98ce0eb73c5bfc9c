package core

import "time"

// IoResult is the outcome of one command. It is not modified after the
// session returns it.
type IoResult struct {
	Success bool
	// Command is the raw text sent to the emulator.
	Command string
	// Result holds the data lines of the reply, without their prefix.
	Result     []string
	StatusLine string
	// Status is nil when the reply carried no parsable status line.
	Status   *Status
	Err      error
	Started  time.Time
	Duration time.Duration
}
