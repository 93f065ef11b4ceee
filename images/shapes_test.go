package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float32
	}{
		{
			name: "identical boxes",
			a:    Rect{YMin: 0.2, XMin: 0.2, YMax: 0.6, XMax: 0.6},
			b:    Rect{YMin: 0.2, XMin: 0.2, YMax: 0.6, XMax: 0.6},
			want: 1.0,
		},
		{
			name: "disjoint boxes",
			a:    Rect{YMin: 0, XMin: 0, YMax: 0.2, XMax: 0.2},
			b:    Rect{YMin: 0.5, XMin: 0.5, YMax: 0.9, XMax: 0.9},
			want: 0.0,
		},
		{
			name: "touching edges",
			a:    Rect{YMin: 0, XMin: 0, YMax: 0.5, XMax: 0.5},
			b:    Rect{YMin: 0, XMin: 0.5, YMax: 0.5, XMax: 1.0},
			want: 0.0,
		},
		{
			name: "known overlap",
			a:    Rect{YMin: 0, XMin: 0, YMax: 1, XMax: 0.5},
			b:    Rect{YMin: 0, XMin: 0.125, YMax: 1, XMax: 0.625},
			want: 0.6,
		},
		{
			name: "degenerate boxes",
			a:    Rect{YMin: 0.3, XMin: 0.3, YMax: 0.3, XMax: 0.3},
			b:    Rect{YMin: 0.3, XMin: 0.3, YMax: 0.3, XMax: 0.3},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateIoU(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.Equal(t, got, CalculateIoU(tt.b, tt.a), "IoU must be symmetric")
		})
	}
}

func TestFromCenter(t *testing.T) {
	t.Run("interior box", func(t *testing.T) {
		r := FromCenter(0.5, 0.5, 0.2, 0.4)
		assert.InDelta(t, 0.4, r.XMin, 1e-6)
		assert.InDelta(t, 0.6, r.XMax, 1e-6)
		assert.InDelta(t, 0.3, r.YMin, 1e-6)
		assert.InDelta(t, 0.7, r.YMax, 1e-6)
	})

	t.Run("clamps to unit range", func(t *testing.T) {
		r := FromCenter(0.05, 0.95, 0.3, 0.3)
		assert.Equal(t, float32(0), r.XMin)
		assert.InDelta(t, 0.2, r.XMax, 1e-6)
		assert.InDelta(t, 0.8, r.YMin, 1e-6)
		assert.Equal(t, float32(1), r.YMax)
	})
}

func TestScaleToPixels(t *testing.T) {
	r := Rect{YMin: 0.25, XMin: 0.1, YMax: 0.75, XMax: 0.5}
	scaled := r.ScaleToPixels(200, 100)

	assert.InDelta(t, 20, scaled.XMin, 1e-4)
	assert.InDelta(t, 100, scaled.XMax, 1e-4)
	assert.InDelta(t, 25, scaled.YMin, 1e-4)
	assert.InDelta(t, 75, scaled.YMax, 1e-4)
}

func TestPadAndClip(t *testing.T) {
	tests := []struct {
		name    string
		rect    Rect
		padding float32
		w, h    int
		want    image.Rectangle
	}{
		{
			name:    "padding is a fraction of the image dimension",
			rect:    Rect{YMin: 10, XMin: 10, YMax: 50, XMax: 50},
			padding: 0.05,
			w:       100, h: 100,
			want: image.Rect(5, 5, 55, 55),
		},
		{
			name:    "clamped at image bounds",
			rect:    Rect{YMin: 0, XMin: 0, YMax: 98, XMax: 98},
			padding: 0.05,
			w:       100, h: 100,
			want: image.Rect(0, 0, 100, 100),
		},
		{
			name:    "fractional bounds round outward",
			rect:    Rect{YMin: 10.6, XMin: 10.6, YMax: 20.2, XMax: 20.2},
			padding: 0,
			w:       100, h: 100,
			want: image.Rect(10, 10, 21, 21),
		},
		{
			name:    "non-square image pads each axis by its own dimension",
			rect:    Rect{YMin: 50, XMin: 50, YMax: 100, XMax: 100},
			padding: 0.1,
			w:       200, h: 100,
			want: image.Rect(30, 40, 120, 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PadAndClip(tt.rect, tt.padding, tt.w, tt.h)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRectArea(t *testing.T) {
	assert.InDelta(t, 0.25, Rect{YMin: 0, XMin: 0, YMax: 0.5, XMax: 0.5}.Area(), 1e-6)
	assert.Equal(t, float32(0), Rect{YMin: 0.5, XMin: 0.5, YMax: 0.5, XMax: 0.5}.Area())
	assert.Equal(t, float32(0), Rect{YMin: 0.6, XMin: 0.6, YMax: 0.4, XMax: 0.4}.Area(), "inverted box has zero area")
}
