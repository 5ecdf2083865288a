// Package compositor defines the boundary between the EIS bridge and the
// host compositor's input stack. The bridge validates and normalizes remote
// input, then injects it through a Host implementation; the compositor owns
// focus resolution and actual device state.
package compositor

// Point is a location in the global coordinate space spanning all outputs.
type Point struct {
	X float64
	Y float64
}

// Rect is an output geometry in global coordinates. The covered area is the
// half-open range [X, X+W) x [Y, Y+H).
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Clamp pulls p inside the rectangle. The upper bound is adjusted by one so
// the result is always an addressable pixel of the output.
func (r Rect) Clamp(p Point) Point {
	if p.X < r.X {
		p.X = r.X
	}
	if p.X > r.X+r.W-1 {
		p.X = r.X + r.W - 1
	}
	if p.Y < r.Y {
		p.Y = r.Y
	}
	if p.Y > r.Y+r.H-1 {
		p.Y = r.Y + r.H - 1
	}
	return p
}

// Output describes one display the compositor is driving.
type Output struct {
	Name     string
	Geometry Rect
}

// Surface is an opaque reference to a compositor surface. Hosts that resolve
// focus themselves (GNOME RemoteDesktop, wlroots virtual input) return a
// placeholder; the in-process fake returns real values for tests.
type Surface any

// Layout is a read-only snapshot of the display and window arrangement.
// Callers compute everything they need from the snapshot (target output,
// clamped position, hit-tested surface) and must not hold it across an
// injection call: injection may need exclusive access to the same state.
type Layout interface {
	// Outputs returns the active outputs. Never empty for a usable host.
	Outputs() []Output

	// ActiveOutput is the output that receives events whose coordinates lie
	// outside every output's geometry.
	ActiveOutput() Output

	// PointerPosition is the pointer location at snapshot time.
	PointerPosition() Point

	// SurfaceAt resolves the surface under a global coordinate, or nil.
	SurfaceAt(p Point) Surface
}

// Host is the compositor's input-injection interface. Implementations are
// called from a single dispatcher goroutine, so they do not need to be safe
// for concurrent injection; Layout may be called from the same goroutine
// only. All coordinates passed in have already been validated and clamped.
//
// Injection on validated input is expected to succeed. A returned error is
// logged by the caller and otherwise ignored; it never aborts a session.
type Host interface {
	Layout() Layout

	InjectKey(code uint32, pressed bool) error
	InjectPointerMotion(pos Point, target Surface) error
	InjectButton(code uint32, pressed bool) error
	InjectScroll(dx, dy float64) error
	InjectTouchDown(slot uint32, pos Point, target Surface) error
	InjectTouchMotion(slot uint32, pos Point, target Surface) error
	InjectTouchUp(slot uint32) error
	InjectTouchCancel() error

	Close() error
}
