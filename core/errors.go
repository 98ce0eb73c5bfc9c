package core

import "fmt"

// CommandErrorKind classifies a failed command.
type CommandErrorKind string

const (
	// CommandErrorCommand indicates the emulator answered with an error.
	CommandErrorCommand CommandErrorKind = "command"
	// CommandErrorPolicy indicates the session refused the command locally
	// because the host state does not satisfy its require policy.
	CommandErrorPolicy CommandErrorKind = "policy"
	// CommandErrorTransport indicates a connect failure, timeout or end of stream.
	CommandErrorTransport CommandErrorKind = "transport"
)

// CommandError is returned for failed commands when a session runs in
// exception mode. Result is the failed outcome, also recorded in history
// when the command reached the backend.
type CommandError struct {
	Kind   CommandErrorKind
	Op     string
	Result *IoResult
	Err    error
}

func (e *CommandError) Error() string {
	if e == nil {
		return "command error"
	}
	op := e.Op
	if op == "" {
		op = "command"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", op, e.Err)
	}
	return fmt.Sprintf("%s failed (%s)", op, e.Kind)
}

func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
