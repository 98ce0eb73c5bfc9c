package core

import (
	"context"

	"pkt.systems/x3270script/schema"
)

// Backend is the transport a Session drives. Implementations live in the
// backend package.
//
// Exchange sends one command line and returns the reply group it produced.
// It must return an error wrapping ctx.Err() when ctx ends first and one
// wrapping schema.ErrEndOfStream once the emulator side has gone away. A
// reply that arrives after its Exchange gave up must not be handed to a
// later call. Close must be idempotent.
type Backend interface {
	Start(ctx context.Context) error
	Exchange(ctx context.Context, command string) (schema.Reply, error)
	Close() error
	LastError() string
}
