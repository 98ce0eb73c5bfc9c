package backend

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/backo-go"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/schema"
)

// dialWithRetry dials addr until it succeeds or ctx ends, waiting interval
// between attempts.
func dialWithRetry(ctx context.Context, addr string, interval, dialTimeout time.Duration, log pslog.Logger) (net.Conn, error) {
	b := backo.NewBacko(interval, 1, 0, interval)
	ticker := b.NewTicker()
	defer ticker.Stop()

	dialer := net.Dialer{Timeout: dialTimeout}
	attempt := 0
	var lastErr error
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			if attempt > 1 {
				log.Debug("emulator connect succeeded after retry", "addr", addr, "attempts", attempt)
			}
			return conn, nil
		}
		lastErr = err
		log.Debug("emulator connect attempt failed", "addr", addr, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %d attempts: %v", schema.ErrConnectFailed, addr, attempt, lastErr)
		case <-ticker.C:
		}
	}
}
