package eis

import (
	"log/slog"

	"github.com/miragedesk/eisbridge/pkg/compositor"
)

// deliver injects one normalized event into the host. It runs only on the
// dispatcher goroutine, so host state is never mutated by two sessions
// concurrently.
//
// Pointer and touch events follow a strict two-phase sequence: take a
// read-only layout snapshot, compute the target output, clamped position and
// hit-tested surface, then inject using only those plain values. The
// snapshot is never held across the injection call, because injection may
// need exclusive access to the same layout state. The target surface is
// recomputed on every motion rather than cached: windows move and restack
// between events.
func deliver(host compositor.Host, ev Event, logger *slog.Logger) {
	var err error

	switch e := ev.(type) {
	case KeyEvent:
		err = host.InjectKey(e.Code, e.Pressed)

	case PointerRelativeMotion:
		layout := host.Layout()
		pos := layout.PointerPosition()
		pos.X += e.DX
		pos.Y += e.DY
		pos = clampToOutput(layout, pos)
		target := layout.SurfaceAt(pos)
		err = host.InjectPointerMotion(pos, target)

	case PointerAbsoluteMotion:
		layout := host.Layout()
		pos := clampToOutput(layout, compositor.Point{X: e.X, Y: e.Y})
		target := layout.SurfaceAt(pos)
		err = host.InjectPointerMotion(pos, target)

	case ButtonEvent:
		err = host.InjectButton(e.Code, e.Pressed)

	case ScrollEvent:
		err = host.InjectScroll(e.DX, e.DY)

	case TouchDownEvent:
		pos := compositor.Point{X: e.X, Y: e.Y}
		target := host.Layout().SurfaceAt(pos)
		err = host.InjectTouchDown(e.ID, pos, target)

	case TouchMotionEvent:
		pos := compositor.Point{X: e.X, Y: e.Y}
		target := host.Layout().SurfaceAt(pos)
		err = host.InjectTouchMotion(e.ID, pos, target)

	case TouchUpEvent:
		err = host.InjectTouchUp(e.ID)

	case TouchCancelEvent:
		err = host.InjectTouchCancel()
	}

	if err != nil {
		logger.Warn("host injection failed", "event", eventName(ev), "err", err)
	}
}

// clampToOutput pulls pos inside the geometry of the output containing it,
// falling back to the active output when no output contains it. The emulated
// pointer is never placed outside any display's addressable area.
func clampToOutput(layout compositor.Layout, pos compositor.Point) compositor.Point {
	geom := layout.ActiveOutput().Geometry
	for _, out := range layout.Outputs() {
		if out.Geometry.Contains(pos) {
			geom = out.Geometry
			break
		}
	}
	return geom.Clamp(pos)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case KeyEvent:
		return "key"
	case PointerRelativeMotion:
		return "pointer-motion"
	case PointerAbsoluteMotion:
		return "pointer-motion-absolute"
	case ButtonEvent:
		return "button"
	case ScrollEvent:
		return "scroll"
	case TouchDownEvent:
		return "touch-down"
	case TouchMotionEvent:
		return "touch-motion"
	case TouchUpEvent:
		return "touch-up"
	case TouchCancelEvent:
		return "touch-cancel"
	}
	return "unknown"
}
