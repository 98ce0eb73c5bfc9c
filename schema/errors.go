package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates malformed input caught before any protocol interaction.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange indicates a row, column, count or key number outside its bounds.
	ErrOutOfRange = fmt.Errorf("%w: out of range", ErrInvalidArgument)
	// ErrInvalidOperation indicates an API used in a state that does not allow it.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrWrongMode indicates a buffer read that does not match the dump mode or cell type.
	ErrWrongMode = fmt.Errorf("%w: wrong buffer mode", ErrInvalidOperation)
	// ErrNotRunning indicates the session lost its backend and cannot do I/O.
	ErrNotRunning = errors.New("session not running")
	// ErrTimeout indicates a command did not complete before its deadline.
	ErrTimeout = errors.New("command timed out")
	// ErrEndOfStream indicates the emulator closed its side of the connection.
	ErrEndOfStream = errors.New("end of stream")
	// ErrConnectFailed indicates the backend could not be acquired.
	ErrConnectFailed = errors.New("backend connect failed")
	// ErrNotConnected indicates the host connection state does not satisfy the session policy.
	ErrNotConnected = errors.New("host not connected")
	// ErrCommandFailed indicates the emulator answered with an error.
	ErrCommandFailed = errors.New("command failed")
)
