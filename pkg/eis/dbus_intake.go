package eis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/godbus/dbus/v5"
)

// D-Bus surface for the control-plane intake. The RemoteDesktop portal
// creates a UNIX socket pair and hands the server side to the bridge
// through this interface.
const (
	intakeBusName = "com.miragedesk.EisBridge"
	intakeObjPath = "/com/miragedesk/EisBridge"
	intakeIface   = "com.miragedesk.EisBridge"
)

// dbusIntake exports AcceptEisSocket on the session bus and forwards
// received streams to the manager. Losing the ability to deliver a socket is
// fatal for the intake, never for sessions already running.
type dbusIntake struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	ctx     context.Context
	sockets chan net.Conn
}

func newDBusIntake(ctx context.Context, logger *slog.Logger) (*dbusIntake, error) {
	var conn *dbus.Conn
	err := retry.Do(
		func() error {
			var err error
			conn, err = dbus.ConnectSessionBus()
			return err
		},
		retry.Context(ctx),
		retry.Attempts(60),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	intake := &dbusIntake{
		conn:    conn,
		logger:  logger,
		ctx:     ctx,
		sockets: make(chan net.Conn, 4),
	}

	if err := conn.Export(intake, intakeObjPath, intakeIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export intake object: %w", err)
	}
	reply, err := conn.RequestName(intakeBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already owned", intakeBusName)
	}

	logger.Info("EIS D-Bus intake registered", "name", intakeBusName)
	return intake, nil
}

// AcceptEisSocket receives the server side of a portal socket pair. Exported
// on the session bus; the fd arrives via SCM_RIGHTS.
func (d *dbusIntake) AcceptEisSocket(fd dbus.UnixFD) *dbus.Error {
	// Duplicate: the bus library may close the original once the message is
	// garbage collected.
	dupFd, err := syscall.Dup(int(fd))
	if err != nil {
		d.logger.Warn("failed to dup EIS socket fd, using original", "err", err)
		dupFd = int(fd)
	}

	f := os.NewFile(uintptr(dupFd), "eis-socket")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		d.logger.Error("received unusable EIS socket fd", "err", err)
		return dbus.MakeFailedError(fmt.Errorf("bad socket fd: %w", err))
	}

	d.logger.Info("received EIS socket via D-Bus")
	select {
	case d.sockets <- conn:
		return nil
	case <-d.ctx.Done():
		conn.Close()
		return dbus.MakeFailedError(fmt.Errorf("bridge EIS channel closed"))
	}
}

// run forwards received sockets to the manager until ctx is cancelled.
func (d *dbusIntake) run(ctx context.Context, mgr *Manager) {
	defer d.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-d.sockets:
			mgr.AddConnection(ctx, conn)
		}
	}
}
