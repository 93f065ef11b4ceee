package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/sawit-ai/go-grading/images"
	"github.com/sawit-ai/go-grading/model"
)

// Role selects the preprocessing policy for a model input.
type Role int

const (
	// RoleDetector square-crops first and scales pixels to [0,1] float32.
	RoleDetector Role = iota
	// RoleClassifier keeps raw pixel values, cast to the declared dtype.
	RoleClassifier
)

// ErrShape is returned when a prepared tensor cannot be reconciled with the
// model's declared input shape by a pure reshape.
var ErrShape = errors.New("tensor shape mismatch")

// PrepareInput turns a decoded image into a tensor conforming to the model's
// declared input spec.
//
// Detector inputs are first center-cropped to a square so that normalized
// detection coordinates refer to the same region later used for classifier
// crops, then scaled to [0,1] float32. Classifier inputs keep raw 0-255
// values, cast to the spec dtype, which supports both float and quantized
// uint8 classifiers. Both are resized to the spec's spatial size with
// Lanczos resampling and get a leading batch dimension.
//
// Arguments:
//   - img: Decoded RGB image.
//   - spec: The model's declared input spec.
//   - role: RoleDetector or RoleClassifier.
//
// Returns:
//   - *tensor.Dense: The conforming input tensor.
//   - error: ErrShape when the natural tensor cannot be reshaped to the
//     declared shape without reinterpreting values.
func PrepareInput(img image.Image, spec model.TensorSpec, role Role) (*tensor.Dense, error) {
	if role == RoleDetector {
		img = images.SquareCrop(img)
	}

	height, width := spec.ImageSize()
	if height <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrShape, "input spec %v has no spatial size", spec.Shape)
	}
	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

	var t *tensor.Dense
	if spec.DType == model.Uint8 && role == RoleClassifier {
		t = fillUint8(resized, width, height)
	} else {
		t = fillFloat32(resized, width, height, role == RoleDetector, spec.ChannelsFirst())
	}

	return reconcile(t, spec)
}

// fillFloat32 writes pixels as float32, interleaved (NHWC) or planar (NCHW).
// Detector values are scaled to [0,1]; classifier floats keep 0-255.
func fillFloat32(img image.Image, width, height int, normalize, channelsFirst bool) *tensor.Dense {
	data := make([]float32, height*width*3)

	scale := float32(1)
	if normalize {
		scale = 1.0 / 255.0
	}

	b := img.Bounds()
	if channelsFirst {
		channelSize := height * width
		red := data[0:channelSize]
		green := data[channelSize : channelSize*2]
		blue := data[channelSize*2 : channelSize*3]
		i := 0
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				red[i] = float32(r>>8) * scale
				green[i] = float32(g>>8) * scale
				blue[i] = float32(bl>>8) * scale
				i++
			}
		}
		return tensor.New(tensor.WithShape(1, 3, height, width), tensor.WithBacking(data))
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[i] = float32(r>>8) * scale
			data[i+1] = float32(g>>8) * scale
			data[i+2] = float32(bl>>8) * scale
			i += 3
		}
	}
	return tensor.New(tensor.WithShape(1, height, width, 3), tensor.WithBacking(data))
}

func fillUint8(img image.Image, width, height int) *tensor.Dense {
	data := make([]uint8, height*width*3)
	b := img.Bounds()
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[i] = uint8(r >> 8)
			data[i+1] = uint8(g >> 8)
			data[i+2] = uint8(bl >> 8)
			i += 3
		}
	}
	return tensor.New(tensor.WithShape(1, height, width, 3), tensor.WithBacking(data))
}

// reconcile reshapes the natural tensor to the declared spec shape. Only a
// pure reshape is allowed: equal element counts, no value reinterpretation.
func reconcile(t *tensor.Dense, spec model.TensorSpec) (*tensor.Dense, error) {
	if shapeEqual(t.Shape(), spec.Shape) {
		return t, nil
	}
	if t.Shape().TotalSize() != spec.Elements() {
		return nil, errors.Wrapf(ErrShape, "prepared %v cannot be reshaped to %v", t.Shape(), spec.Shape)
	}
	if err := t.Reshape(spec.Shape...); err != nil {
		return nil, errors.Wrapf(ErrShape, "prepared %v cannot be reshaped to %v: %v", t.Shape(), spec.Shape, err)
	}
	return t, nil
}

func shapeEqual(s tensor.Shape, want []int) bool {
	if len(s) != len(want) {
		return false
	}
	for i, d := range s {
		if d != want[i] {
			return false
		}
	}
	return true
}
