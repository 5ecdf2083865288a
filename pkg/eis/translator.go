package eis

import (
	"log/slog"
	"math"

	"github.com/miragedesk/eisbridge/pkg/eis/wire"
)

// Validation bounds for untrusted peer input.
const (
	// maxEvdevCode is KEY_MAX from linux/input-event-codes.h.
	maxEvdevCode = 0x2FF

	// maxTouchID is a generous upper bound; real devices rarely exceed 20.
	maxTouchID = 256
)

// Translator is the trust boundary between decoded protocol requests and
// normalized events. Every field from the peer is validated here; a request
// that fails validation is dropped with a warning and produces no event, so
// no host call can ever see it.
type Translator struct {
	logger *slog.Logger
}

func NewTranslator(logger *slog.Logger) *Translator {
	return &Translator{logger: logger}
}

// Translate maps an input request to a normalized event. ok=false means the
// request was rejected (or carries no injectable payload) and must be
// dropped. Bookkeeping requests (hello, bind, frame, emulation brackets)
// never reach the translator.
func (t *Translator) Translate(req wire.Request) (Event, bool) {
	switch q := req.(type) {
	case wire.KeyboardKey:
		if q.Key > maxEvdevCode {
			t.logger.Warn("rejecting keyboard event: keycode out of range", "keycode", q.Key)
			return nil, false
		}
		return KeyEvent{Code: q.Key, Pressed: q.Pressed}, true

	case wire.Button:
		if q.Button > maxEvdevCode {
			t.logger.Warn("rejecting button event: code out of range", "button", q.Button)
			return nil, false
		}
		return ButtonEvent{Code: q.Button, Pressed: q.Pressed}, true

	case wire.PointerMotion:
		dx, dy := float64(q.DX), float64(q.DY)
		if !isFinite(dx) || !isFinite(dy) {
			t.logger.Warn("rejecting pointer motion: non-finite delta", "dx", dx, "dy", dy)
			return nil, false
		}
		return PointerRelativeMotion{DX: dx, DY: dy}, true

	case wire.PointerMotionAbsolute:
		x, y := float64(q.X), float64(q.Y)
		if !isFinite(x) || !isFinite(y) {
			t.logger.Warn("rejecting absolute pointer motion: non-finite coordinates", "x", x, "y", y)
			return nil, false
		}
		return PointerAbsoluteMotion{X: x, Y: y}, true

	case wire.ScrollDelta:
		dx, dy := float64(q.DX), float64(q.DY)
		if !isFinite(dx) || !isFinite(dy) {
			t.logger.Warn("rejecting scroll event: non-finite delta", "dx", dx, "dy", dy)
			return nil, false
		}
		if dx == 0 && dy == 0 {
			return nil, false
		}
		return ScrollEvent{DX: dx, DY: dy}, true

	case wire.TouchDown:
		if q.TouchID > maxTouchID {
			t.logger.Warn("rejecting touch down: ID out of range", "touch_id", q.TouchID)
			return nil, false
		}
		x, y := float64(q.X), float64(q.Y)
		if !isFinite(x) || !isFinite(y) {
			t.logger.Warn("rejecting touch down: non-finite coordinates", "x", x, "y", y)
			return nil, false
		}
		return TouchDownEvent{ID: q.TouchID, X: x, Y: y}, true

	case wire.TouchMotion:
		if q.TouchID > maxTouchID {
			t.logger.Warn("rejecting touch motion: ID out of range", "touch_id", q.TouchID)
			return nil, false
		}
		x, y := float64(q.X), float64(q.Y)
		if !isFinite(x) || !isFinite(y) {
			t.logger.Warn("rejecting touch motion: non-finite coordinates", "x", x, "y", y)
			return nil, false
		}
		return TouchMotionEvent{ID: q.TouchID, X: x, Y: y}, true

	case wire.TouchUp:
		// Release for an unknown or out-of-range id is delivered as-is;
		// the host treats it as an idempotent no-op.
		return TouchUpEvent{ID: q.TouchID}, true

	case wire.TouchCancel:
		return TouchCancelEvent{}, true
	}

	return nil, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
