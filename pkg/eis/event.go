package eis

// Event is a validated, normalized input event produced by the translator.
// Events are transient: produced per request, queued briefly, and consumed
// by the dispatcher. Coordinates are floats in the global space spanning all
// outputs; injection timestamps are taken from the host clock at delivery,
// never from peer-supplied values.
type Event interface {
	isEvent()
}

type KeyEvent struct {
	Code    uint32
	Pressed bool
}

type PointerRelativeMotion struct {
	DX float64
	DY float64
}

type PointerAbsoluteMotion struct {
	X float64
	Y float64
}

type ButtonEvent struct {
	Code    uint32
	Pressed bool
}

type ScrollEvent struct {
	DX float64
	DY float64
}

type TouchDownEvent struct {
	ID uint32
	X  float64
	Y  float64
}

type TouchMotionEvent struct {
	ID uint32
	X  float64
	Y  float64
}

type TouchUpEvent struct {
	ID uint32
}

type TouchCancelEvent struct{}

func (KeyEvent) isEvent()              {}
func (PointerRelativeMotion) isEvent() {}
func (PointerAbsoluteMotion) isEvent() {}
func (ButtonEvent) isEvent()           {}
func (ScrollEvent) isEvent()           {}
func (TouchDownEvent) isEvent()        {}
func (TouchMotionEvent) isEvent()      {}
func (TouchUpEvent) isEvent()          {}
func (TouchCancelEvent) isEvent()      {}
