// Package model - loaded model handles for the grading pipeline.
//
// A Model wraps one mutable execution context: input tensors are written in
// place, Invoke runs the graph, outputs are read back. Callers must hold the
// model's lock across that whole sequence; at most one invocation may be in
// flight per model.
package model

import "fmt"

// DType is the numeric kind of a tensor.
type DType int

const (
	// Float32 is a 32-bit floating point tensor.
	Float32 DType = iota
	// Uint8 is an 8-bit quantized tensor.
	Uint8
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// TensorSpec describes one input or output tensor of a loaded model. Specs
// are captured once at load time and never change for the model's lifetime.
type TensorSpec struct {
	// Shape is the declared tensor shape, batch dimension included.
	Shape []int
	// DType is the tensor's numeric kind.
	DType DType
	// Index is the backend's tensor slot.
	Index int
}

// Elements returns the total element count of the declared shape.
func (s TensorSpec) Elements() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// ChannelsFirst reports whether the spec declares an NCHW image layout.
// TFLite image models are NHWC; ONNX exports are typically NCHW.
func (s TensorSpec) ChannelsFirst() bool {
	return len(s.Shape) == 4 && s.Shape[1] == 3 && s.Shape[3] != 3
}

// ImageSize returns the spatial (height, width) a conforming input image
// must be resized to.
func (s TensorSpec) ImageSize() (height, width int) {
	if s.ChannelsFirst() {
		return s.Shape[2], s.Shape[3]
	}
	if len(s.Shape) >= 3 {
		return s.Shape[1], s.Shape[2]
	}
	return 0, 0
}
