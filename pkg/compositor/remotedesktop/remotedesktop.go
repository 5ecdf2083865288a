// Package remotedesktop injects input through GNOME Mutter's RemoteDesktop
// and ScreenCast D-Bus APIs. A RemoteDesktop session linked to a ScreenCast
// session is required for absolute pointer and touch injection.
package remotedesktop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/godbus/dbus/v5"

	"github.com/miragedesk/eisbridge/pkg/compositor"
)

const (
	remoteDesktopBus          = "org.gnome.Mutter.RemoteDesktop"
	remoteDesktopPath         = "/org/gnome/Mutter/RemoteDesktop"
	remoteDesktopIface        = "org.gnome.Mutter.RemoteDesktop"
	remoteDesktopSessionIface = "org.gnome.Mutter.RemoteDesktop.Session"

	screenCastBus          = "org.gnome.Mutter.ScreenCast"
	screenCastPath         = "/org/gnome/Mutter/ScreenCast"
	screenCastIface        = "org.gnome.Mutter.ScreenCast"
	screenCastSessionIface = "org.gnome.Mutter.ScreenCast.Session"
)

// Host is the GNOME backend. Mutter resolves focus itself, so the layout is
// a single output covering the recorded monitor and the hit-tested surface
// is the stream path.
type Host struct {
	conn          *dbus.Conn
	rdSessionPath dbus.ObjectPath
	scSessionPath dbus.ObjectPath
	scStreamPath  dbus.ObjectPath
	logger        *slog.Logger

	mu      sync.Mutex
	pointer compositor.Point
	output  compositor.Output
}

// NewHost connects to the session bus (with retry; the bus may come up after
// the bridge inside a container), creates linked RemoteDesktop and
// ScreenCast sessions, and primes keyboard input.
func NewHost(ctx context.Context, width, height int, logger *slog.Logger) (*Host, error) {
	var conn *dbus.Conn
	err := retry.Do(
		func() error {
			c, err := dbus.ConnectSessionBus()
			if err != nil {
				return err
			}
			// Verify the RemoteDesktop service is actually up.
			rdObj := c.Object(remoteDesktopBus, remoteDesktopPath)
			if err := rdObj.Call("org.freedesktop.DBus.Introspectable.Introspect", 0).Err; err != nil {
				c.Close()
				return fmt.Errorf("RemoteDesktop service not ready: %w", err)
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(60),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	h := &Host{
		conn:   conn,
		logger: logger,
		output: compositor.Output{
			Name:     "Meta-0",
			Geometry: compositor.Rect{X: 0, Y: 0, W: float64(width), H: float64(height)},
		},
		pointer: compositor.Point{X: float64(width) / 2, Y: float64(height) / 2},
	}

	if err := h.createSession(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := h.startSession(); err != nil {
		conn.Close()
		return nil, err
	}

	// GNOME silently drops the very first keyboard event of a session.
	// Prime with a harmless Escape press and release so the user's first
	// real keypress is delivered.
	h.InjectKey(1, true)
	h.InjectKey(1, false)

	logger.Info("RemoteDesktop backend ready",
		"rd_session", h.rdSessionPath,
		"stream", h.scStreamPath)
	return h, nil
}

func (h *Host) createSession() error {
	rdObj := h.conn.Object(remoteDesktopBus, remoteDesktopPath)
	if err := rdObj.Call(remoteDesktopIface+".CreateSession", 0).Store(&h.rdSessionPath); err != nil {
		return fmt.Errorf("create RemoteDesktop session: %w", err)
	}

	// The linked ScreenCast session needs the RemoteDesktop SessionId.
	rdSession := h.conn.Object(remoteDesktopBus, h.rdSessionPath)
	var sessionID string
	var variant dbus.Variant
	if err := rdSession.Call("org.freedesktop.DBus.Properties.Get", 0,
		remoteDesktopSessionIface, "SessionId").Store(&variant); err != nil {
		h.logger.Warn("failed to read SessionId property, falling back to path extraction", "err", err)
		sessionID = string(h.rdSessionPath)
		if idx := strings.LastIndex(sessionID, "/"); idx >= 0 {
			sessionID = sessionID[idx+1:]
		}
	} else {
		sessionID, _ = variant.Value().(string)
	}

	scObj := h.conn.Object(screenCastBus, screenCastPath)
	options := map[string]dbus.Variant{
		"remote-desktop-session-id": dbus.MakeVariant(sessionID),
	}
	if err := scObj.Call(screenCastIface+".CreateSession", 0, options).Store(&h.scSessionPath); err != nil {
		return fmt.Errorf("create linked ScreenCast session: %w", err)
	}

	scSession := h.conn.Object(screenCastBus, h.scSessionPath)
	recordOptions := map[string]dbus.Variant{
		"cursor-mode": dbus.MakeVariant(uint32(2)), // metadata, not rendered into video
	}
	if err := scSession.Call(screenCastSessionIface+".RecordMonitor", 0, h.output.Name, recordOptions).Store(&h.scStreamPath); err != nil {
		return fmt.Errorf("record monitor %s: %w", h.output.Name, err)
	}
	return nil
}

func (h *Host) startSession() error {
	rdSession := h.conn.Object(remoteDesktopBus, h.rdSessionPath)
	if err := rdSession.Call(remoteDesktopSessionIface+".Start", 0).Err; err != nil {
		return fmt.Errorf("start RemoteDesktop session: %w", err)
	}
	return nil
}

type layout struct {
	output  compositor.Output
	pointer compositor.Point
	stream  string
}

func (l *layout) Outputs() []compositor.Output      { return []compositor.Output{l.output} }
func (l *layout) ActiveOutput() compositor.Output   { return l.output }
func (l *layout) PointerPosition() compositor.Point { return l.pointer }

func (l *layout) SurfaceAt(p compositor.Point) compositor.Surface {
	if l.output.Geometry.Contains(p) {
		return l.stream
	}
	return nil
}

func (h *Host) Layout() compositor.Layout {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &layout{output: h.output, pointer: h.pointer, stream: string(h.scStreamPath)}
}

func (h *Host) call(method string, args ...any) error {
	rdSession := h.conn.Object(remoteDesktopBus, h.rdSessionPath)
	if err := rdSession.Call(remoteDesktopSessionIface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (h *Host) InjectKey(code uint32, pressed bool) error {
	return h.call("NotifyKeyboardKeycode", code, pressed)
}

func (h *Host) InjectPointerMotion(pos compositor.Point, target compositor.Surface) error {
	h.mu.Lock()
	h.pointer = pos
	stream := string(h.scStreamPath)
	h.mu.Unlock()
	return h.call("NotifyPointerMotionAbsolute", stream, pos.X, pos.Y)
}

func (h *Host) InjectButton(code uint32, pressed bool) error {
	return h.call("NotifyPointerButton", int32(code), pressed)
}

func (h *Host) InjectScroll(dx, dy float64) error {
	// Finger source (flags 0): smooth scrolling with kinetic support.
	return h.call("NotifyPointerAxis", dx, dy, uint32(0))
}

func (h *Host) InjectTouchDown(slot uint32, pos compositor.Point, target compositor.Surface) error {
	return h.call("NotifyTouchDown", string(h.scStreamPath), slot, pos.X, pos.Y)
}

func (h *Host) InjectTouchMotion(slot uint32, pos compositor.Point, target compositor.Surface) error {
	return h.call("NotifyTouchMotion", string(h.scStreamPath), slot, pos.X, pos.Y)
}

func (h *Host) InjectTouchUp(slot uint32) error {
	return h.call("NotifyTouchUp", slot)
}

func (h *Host) InjectTouchCancel() error {
	// Mutter has no explicit cancel; lifting all touches is the closest
	// observable effect and is idempotent.
	return h.call("NotifyTouchUp", uint32(0))
}

func (h *Host) Close() error {
	if h.rdSessionPath != "" {
		rdSession := h.conn.Object(remoteDesktopBus, h.rdSessionPath)
		rdSession.Call(remoteDesktopSessionIface+".Stop", 0)
	}
	return h.conn.Close()
}
