// Package images - box geometry and pixel utilities for the grading pipeline.
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a corner-form bounding box. The detection decoder produces rects
// normalized to [0,1] in detector-input space; ScaleToPixels moves a rect
// into pixel space. Mixing the two spaces without an explicit conversion is
// a caller bug.
type Rect struct {
	YMin, XMin, YMax, XMax float32
}

// FromCenter converts a center-form box (cx, cy, w, h) to corner form,
// clamping every coordinate to the normalized [0,1] range.
//
// Arguments:
//   - cx, cy: Box center.
//   - w, h: Box width and height.
//
// Returns:
//   - Rect: The clipped corner-form box.
func FromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		YMin: clamp01(cy - h/2),
		XMin: clamp01(cx - w/2),
		YMax: clamp01(cy + h/2),
		XMax: clamp01(cx + w/2),
	}
}

// Area returns the box area, zero for degenerate boxes.
func (r Rect) Area() float32 {
	w := r.XMax - r.XMin
	h := r.YMax - r.YMin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CalculateIoU computes the Intersection over Union of two corner-form boxes.
//
// IoU = intersection area / union area. Identical boxes score 1.0, disjoint
// boxes 0.0, and a zero union (two degenerate boxes) scores 0.0 so that
// degenerate boxes never count as overlapping.
//
// Arguments:
//   - r: The first box.
//   - o: The second box.
//
// Returns:
//   - float32: IoU in [0,1].
func CalculateIoU(r, o Rect) float32 {
	interH := math32.Min(r.YMax, o.YMax) - math32.Max(r.YMin, o.YMin)
	interW := math32.Min(r.XMax, o.XMax) - math32.Max(r.XMin, o.XMin)
	if interH <= 0 || interW <= 0 {
		return 0
	}
	inter := interH * interW

	union := r.Area() + o.Area() - inter
	if union == 0 {
		return 0
	}
	return inter / union
}

// ScaleToPixels multiplies a normalized rect by the target dimensions. The
// result is a pixel-space rect with fractional coordinates; PadAndClip turns
// it into integer crop bounds. The same scaling applies whether the target is
// the square working image or a sub-crop.
func (r Rect) ScaleToPixels(width, height int) Rect {
	return Rect{
		YMin: r.YMin * float32(height),
		XMin: r.XMin * float32(width),
		YMax: r.YMax * float32(height),
		XMax: r.XMax * float32(width),
	}
}

// PadAndClip expands a pixel-space rect outward by padding*imageDimension on
// each side, clamps it to the image bounds and rounds outward to integer
// pixels (floor on mins, ceil on maxes). The padding is a fraction of the
// full image dimension, constant regardless of box size.
//
// Arguments:
//   - r: Pixel-space corner-form rect.
//   - padding: Padding fraction of the image width/height.
//   - imgW, imgH: Image dimensions.
//
// Returns:
//   - image.Rectangle: Integer crop bounds, possibly empty.
func PadAndClip(r Rect, padding float32, imgW, imgH int) image.Rectangle {
	padX := padding * float32(imgW)
	padY := padding * float32(imgH)

	x1 := int(math32.Floor(math32.Max(0, r.XMin-padX)))
	y1 := int(math32.Floor(math32.Max(0, r.YMin-padY)))
	x2 := int(math32.Ceil(math32.Min(float32(imgW), r.XMax+padX)))
	y2 := int(math32.Ceil(math32.Min(float32(imgH), r.YMax+padY)))

	return image.Rect(x1, y1, x2, y2)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
