package compositor

import (
	"fmt"
	"sync"
)

// Fake is an in-memory Host that records every injection call. It backs the
// bridge's tests and the -backend=none dry-run mode.
type Fake struct {
	mu       sync.Mutex
	outputs  []Output
	active   Output
	pointer  Point
	surfaces map[string]Rect // surface name -> region
	calls    []string
}

// NewFake returns a Fake with a single 1920x1080 output at the origin.
func NewFake() *Fake {
	out := Output{Name: "fake-0", Geometry: Rect{X: 0, Y: 0, W: 1920, H: 1080}}
	return &Fake{
		outputs:  []Output{out},
		active:   out,
		surfaces: map[string]Rect{},
	}
}

// SetOutputs replaces the output set. The first output becomes active.
func (f *Fake) SetOutputs(outputs ...Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs = outputs
	if len(outputs) > 0 {
		f.active = outputs[0]
	}
}

// AddSurface registers a named surface covering the given region.
func (f *Fake) AddSurface(name string, region Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surfaces[name] = region
}

// SetPointer moves the tracked pointer without recording an injection.
func (f *Fake) SetPointer(p Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointer = p
}

// Pointer returns the current tracked pointer position.
func (f *Fake) Pointer() Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pointer
}

// Calls returns the recorded injection calls in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded injection calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *Fake) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

type fakeLayout struct {
	outputs  []Output
	active   Output
	pointer  Point
	surfaces map[string]Rect
}

func (l *fakeLayout) Outputs() []Output      { return l.outputs }
func (l *fakeLayout) ActiveOutput() Output   { return l.active }
func (l *fakeLayout) PointerPosition() Point { return l.pointer }

func (l *fakeLayout) SurfaceAt(p Point) Surface {
	for name, region := range l.surfaces {
		if region.Contains(p) {
			return name
		}
	}
	return nil
}

// Layout returns a value snapshot; later mutations of the Fake are not
// visible through it.
func (f *Fake) Layout() Layout {
	f.mu.Lock()
	defer f.mu.Unlock()
	outputs := make([]Output, len(f.outputs))
	copy(outputs, f.outputs)
	surfaces := make(map[string]Rect, len(f.surfaces))
	for k, v := range f.surfaces {
		surfaces[k] = v
	}
	return &fakeLayout{outputs: outputs, active: f.active, pointer: f.pointer, surfaces: surfaces}
}

func (f *Fake) InjectKey(code uint32, pressed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("key code=%d pressed=%t", code, pressed)
	return nil
}

func (f *Fake) InjectPointerMotion(pos Point, target Surface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointer = pos
	f.record("motion x=%g y=%g target=%v", pos.X, pos.Y, target)
	return nil
}

func (f *Fake) InjectButton(code uint32, pressed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("button code=%d pressed=%t", code, pressed)
	return nil
}

func (f *Fake) InjectScroll(dx, dy float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("scroll dx=%g dy=%g", dx, dy)
	return nil
}

func (f *Fake) InjectTouchDown(slot uint32, pos Point, target Surface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("touch-down slot=%d x=%g y=%g target=%v", slot, pos.X, pos.Y, target)
	return nil
}

func (f *Fake) InjectTouchMotion(slot uint32, pos Point, target Surface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("touch-motion slot=%d x=%g y=%g target=%v", slot, pos.X, pos.Y, target)
	return nil
}

func (f *Fake) InjectTouchUp(slot uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("touch-up slot=%d", slot)
	return nil
}

func (f *Fake) InjectTouchCancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("touch-cancel")
	return nil
}

func (f *Fake) Close() error { return nil }
