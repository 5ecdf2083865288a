// Package uinputdev injects input through /dev/uinput virtual devices. It
// is the fallback for hosts without a usable Wayland injection path and
// requires device access (--privileged or a udev rule).
package uinputdev

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/bendahl/uinput"

	"github.com/miragedesk/eisbridge/pkg/compositor"
)

const (
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
)

// Host drives a virtual keyboard and mouse. The uinput mouse is a relative
// device, so absolute targets are reached by tracking the current position
// and emitting the delta.
type Host struct {
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	logger   *slog.Logger

	mu     sync.Mutex
	pos    compositor.Point
	output compositor.Output

	touchWarned bool
}

func NewHost(width, height int, logger *slog.Logger) (*Host, error) {
	keyboard, err := uinput.CreateKeyboard("/dev/uinput", []byte("eisbridge-keyboard"))
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte("eisbridge-mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("create virtual mouse: %w", err)
	}

	h := &Host{
		keyboard: keyboard,
		mouse:    mouse,
		logger:   logger,
		output: compositor.Output{
			Name:     "uinput-0",
			Geometry: compositor.Rect{X: 0, Y: 0, W: float64(width), H: float64(height)},
		},
		pos: compositor.Point{X: float64(width) / 2, Y: float64(height) / 2},
	}
	logger.Info("uinput backend ready", "width", width, "height", height)
	return h, nil
}

type layout struct {
	output compositor.Output
	pos    compositor.Point
}

func (l *layout) Outputs() []compositor.Output      { return []compositor.Output{l.output} }
func (l *layout) ActiveOutput() compositor.Output   { return l.output }
func (l *layout) PointerPosition() compositor.Point { return l.pos }

func (l *layout) SurfaceAt(p compositor.Point) compositor.Surface {
	if l.output.Geometry.Contains(p) {
		return l.output.Name
	}
	return nil
}

func (h *Host) Layout() compositor.Layout {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &layout{output: h.output, pos: h.pos}
}

func (h *Host) InjectKey(code uint32, pressed bool) error {
	if pressed {
		return h.keyboard.KeyDown(int(code))
	}
	return h.keyboard.KeyUp(int(code))
}

func (h *Host) InjectPointerMotion(pos compositor.Point, target compositor.Surface) error {
	h.mu.Lock()
	dx := int32(math.Round(pos.X - h.pos.X))
	dy := int32(math.Round(pos.Y - h.pos.Y))
	h.pos = pos
	h.mu.Unlock()

	if dx == 0 && dy == 0 {
		return nil
	}
	return h.mouse.Move(dx, dy)
}

func (h *Host) InjectButton(code uint32, pressed bool) error {
	switch code {
	case btnLeft:
		if pressed {
			return h.mouse.LeftPress()
		}
		return h.mouse.LeftRelease()
	case btnRight:
		if pressed {
			return h.mouse.RightPress()
		}
		return h.mouse.RightRelease()
	case btnMiddle:
		if pressed {
			return h.mouse.MiddlePress()
		}
		return h.mouse.MiddleRelease()
	default:
		h.logger.Debug("unsupported button for uinput mouse", "button", code)
		return nil
	}
}

func (h *Host) InjectScroll(dx, dy float64) error {
	if dy != 0 {
		if err := h.mouse.Wheel(false, int32(math.Round(dy))); err != nil {
			return fmt.Errorf("vertical wheel: %w", err)
		}
	}
	if dx != 0 {
		if err := h.mouse.Wheel(true, int32(math.Round(dx))); err != nil {
			return fmt.Errorf("horizontal wheel: %w", err)
		}
	}
	return nil
}

func (h *Host) touchUnsupported() error {
	h.mu.Lock()
	warned := h.touchWarned
	h.touchWarned = true
	h.mu.Unlock()
	if !warned {
		h.logger.Warn("touch injection not supported by uinput backend, dropping touch events")
	}
	return nil
}

func (h *Host) InjectTouchDown(slot uint32, pos compositor.Point, target compositor.Surface) error {
	return h.touchUnsupported()
}

func (h *Host) InjectTouchMotion(slot uint32, pos compositor.Point, target compositor.Surface) error {
	return h.touchUnsupported()
}

func (h *Host) InjectTouchUp(slot uint32) error {
	return h.touchUnsupported()
}

func (h *Host) InjectTouchCancel() error {
	return h.touchUnsupported()
}

func (h *Host) Close() error {
	var errs []error
	if err := h.keyboard.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close keyboard: %w", err))
	}
	if err := h.mouse.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close mouse: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
