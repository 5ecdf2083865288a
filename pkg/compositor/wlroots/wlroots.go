// Package wlroots injects input through the zwlr_virtual_pointer_v1 and
// zwp_virtual_keyboard_v1 Wayland protocols, supported by Sway, Hyprland
// and other wlroots compositors.
package wlroots

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bnema/wayland-virtual-input-go/virtual_keyboard"
	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"

	"github.com/miragedesk/eisbridge/pkg/compositor"
)

// Host drives virtual pointer and keyboard devices. The protocols carry no
// focus information, so the compositor's own focus rules decide where
// events land; the layout exposes a single output and the bridge's clamp
// keeps coordinates inside it.
type Host struct {
	pointerMgr  *virtual_pointer.VirtualPointerManager
	keyboardMgr *virtual_keyboard.VirtualKeyboardManager
	pointer     *virtual_pointer.VirtualPointer
	keyboard    *virtual_keyboard.VirtualKeyboard
	logger      *slog.Logger

	mu     sync.Mutex
	pos    compositor.Point
	output compositor.Output

	touchWarned bool
}

func NewHost(ctx context.Context, width, height int, logger *slog.Logger) (*Host, error) {
	pointerMgr, err := virtual_pointer.NewVirtualPointerManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual pointer manager: %w", err)
	}
	pointer, err := pointerMgr.CreatePointer()
	if err != nil {
		pointerMgr.Close()
		return nil, fmt.Errorf("create virtual pointer: %w", err)
	}

	keyboardMgr, err := virtual_keyboard.NewVirtualKeyboardManager(ctx)
	if err != nil {
		pointer.Close()
		pointerMgr.Close()
		return nil, fmt.Errorf("virtual keyboard manager: %w", err)
	}
	keyboard, err := keyboardMgr.CreateKeyboard()
	if err != nil {
		keyboardMgr.Close()
		pointer.Close()
		pointerMgr.Close()
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}

	h := &Host{
		pointerMgr:  pointerMgr,
		keyboardMgr: keyboardMgr,
		pointer:     pointer,
		keyboard:    keyboard,
		logger:      logger,
		output: compositor.Output{
			Name:     "wlroots-0",
			Geometry: compositor.Rect{X: 0, Y: 0, W: float64(width), H: float64(height)},
		},
		pos: compositor.Point{X: float64(width) / 2, Y: float64(height) / 2},
	}
	logger.Info("wlroots virtual input backend ready", "width", width, "height", height)
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
	state := virtual_keyboard.KeyStateReleased
	if pressed {
		state = virtual_keyboard.KeyStatePressed
	}
	if err := h.keyboard.Key(time.Now(), code, state); err != nil {
		return fmt.Errorf("keyboard key: %w", err)
	}
	return nil
}

func (h *Host) InjectPointerMotion(pos compositor.Point, target compositor.Surface) error {
	h.mu.Lock()
	h.pos = pos
	extentX := uint32(h.output.Geometry.W)
	extentY := uint32(h.output.Geometry.H)
	h.mu.Unlock()

	if err := h.pointer.MotionAbsolute(time.Now(), uint32(pos.X), uint32(pos.Y), extentX, extentY); err != nil {
		return fmt.Errorf("pointer motion: %w", err)
	}
	return h.pointer.Frame()
}

func buttonState(pressed bool) virtual_pointer.ButtonState {
	if pressed {
		return virtual_pointer.ButtonStatePressed
	}
	return virtual_pointer.ButtonStateReleased
}

func (h *Host) InjectButton(code uint32, pressed bool) error {
	h.pointer.Button(time.Now(), code, buttonState(pressed))
	return h.pointer.Frame()
}

func (h *Host) InjectScroll(dx, dy float64) error {
	now := time.Now()
	h.pointer.AxisSource(virtual_pointer.AxisSourceWheel)
	if dy != 0 {
		h.pointer.AxisDiscrete(now, virtual_pointer.AxisVertical, dy, discreteSteps(dy))
	}
	if dx != 0 {
		h.pointer.AxisDiscrete(now, virtual_pointer.AxisHorizontal, dx, discreteSteps(dx))
	}
	return h.pointer.Frame()
}

// discreteSteps converts a smooth axis value to wheel clicks. 15 units per
// click matches libinput's convention.
func discreteSteps(delta float64) int32 {
	steps := int32(math.Round(delta / 15))
	if steps == 0 {
		if delta > 0 {
			return 1
		}
		return -1
	}
	return steps
}

func (h *Host) touchUnsupported() error {
	h.mu.Lock()
	warned := h.touchWarned
	h.touchWarned = true
	h.mu.Unlock()
	if !warned {
		h.logger.Warn("touch injection not supported by wlroots virtual input protocols, dropping touch events")
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
	if h.keyboard != nil {
		h.keyboard.Close()
	}
	if h.keyboardMgr != nil {
		h.keyboardMgr.Close()
	}
	if h.pointer != nil {
		h.pointer.Close()
	}
	if h.pointerMgr != nil {
		h.pointerMgr.Close()
	}
	return nil
}
