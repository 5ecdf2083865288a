package eis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// unixIntake accepts direct EIS connections on a UNIX socket for portals
// that dial the bridge instead of handing over an fd.
type unixIntake struct {
	path     string
	listener net.Listener
	logger   *slog.Logger
}

func newUnixIntake(path string, logger *slog.Logger) (*unixIntake, error) {
	// Remove a stale socket from a previous run.
	os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	logger.Info("EIS socket created", "path", path)
	return &unixIntake{path: path, listener: l, logger: logger}, nil
}

// run accepts connections until ctx is cancelled, handing each socket to the
// manager. Accept deadlines keep the loop responsive to shutdown.
func (u *unixIntake) run(ctx context.Context, mgr *Manager) {
	defer u.listener.Close()
	defer os.Remove(u.path)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ul, ok := u.listener.(*net.UnixListener); ok {
			ul.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := u.listener.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			u.logger.Error("EIS socket accept error", "err", err)
			continue
		}

		mgr.AddConnection(ctx, conn)
	}
}
