package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectClamp(t *testing.T) {
	r := Rect{X: 1920, Y: 0, W: 1280, H: 1024}

	tests := []struct {
		name string
		in   Point
		want Point
	}{
		{"inside unchanged", Point{X: 2000, Y: 500}, Point{X: 2000, Y: 500}},
		{"left of output", Point{X: 0, Y: 500}, Point{X: 1920, Y: 500}},
		{"right of output", Point{X: 4000, Y: 500}, Point{X: 3199, Y: 500}},
		{"above output", Point{X: 2000, Y: -50}, Point{X: 2000, Y: 0}},
		{"below output", Point{X: 2000, Y: 5000}, Point{X: 2000, Y: 1023}},
		{"both axes", Point{X: -10, Y: -10}, Point{X: 1920, Y: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Clamp(tt.in))
		})
	}
}

func TestFakeLayoutIsSnapshot(t *testing.T) {
	f := NewFake()
	layout := f.Layout()

	// Mutations after the snapshot are not visible through it.
	f.SetPointer(Point{X: 500, Y: 500})
	f.AddSurface("late", Rect{X: 0, Y: 0, W: 100, H: 100})

	assert.Equal(t, Point{}, layout.PointerPosition())
	assert.Nil(t, layout.SurfaceAt(Point{X: 50, Y: 50}))

	fresh := f.Layout()
	assert.Equal(t, Point{X: 500, Y: 500}, fresh.PointerPosition())
	assert.Equal(t, "late", fresh.SurfaceAt(Point{X: 50, Y: 50}))
}

func TestFakeRecordsCalls(t *testing.T) {
	f := NewFake()
	f.InjectKey(30, true)
	f.InjectScroll(1, 2)
	f.InjectTouchUp(3)

	assert.Equal(t, 3, f.CallCount())
	assert.Equal(t, []string{
		"key code=30 pressed=true",
		"scroll dx=1 dy=2",
		"touch-up slot=3",
	}, f.Calls())
}
