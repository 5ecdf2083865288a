package wlroots

import (
	"testing"

	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
	"github.com/stretchr/testify/assert"

	"github.com/miragedesk/eisbridge/pkg/compositor"
)

func TestButtonState(t *testing.T) {
	assert.Equal(t, virtual_pointer.ButtonStatePressed, buttonState(true))
	assert.Equal(t, virtual_pointer.ButtonStateReleased, buttonState(false))
}

func TestDiscreteSteps(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  int32
	}{
		{"one click down", 15, 1},
		{"one click up", -15, -1},
		{"two clicks", 30, 2},
		{"small positive rounds to one", 3, 1},
		{"small negative rounds to minus one", -3, -1},
		{"rounds to nearest", 22.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, discreteSteps(tt.delta))
		})
	}
}

func TestLayoutSingleOutput(t *testing.T) {
	l := &layout{
		output: compositor.Output{
			Name:     "wlroots-0",
			Geometry: compositor.Rect{X: 0, Y: 0, W: 1920, H: 1080},
		},
		pos: compositor.Point{X: 960, Y: 540},
	}

	assert.Len(t, l.Outputs(), 1)
	assert.Equal(t, l.output, l.ActiveOutput())
	assert.Equal(t, "wlroots-0", l.SurfaceAt(compositor.Point{X: 10, Y: 10}))
	assert.Nil(t, l.SurfaceAt(compositor.Point{X: 5000, Y: 10}))
}
