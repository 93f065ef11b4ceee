package model

import (
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Model is a loaded, warmed model handle. Implementations embed a mutex;
// callers hold the lock across SetInput, Invoke and Output because the
// backends mutate a single execution context in place.
type Model interface {
	sync.Locker

	// InputSpec returns the model's declared input tensor spec.
	InputSpec() TensorSpec
	// OutputSpecs returns the declared output tensor specs.
	OutputSpecs() []TensorSpec
	// SetInput writes the tensor into the model's input slot.
	SetInput(t *tensor.Dense) error
	// Invoke runs the model on the current input.
	Invoke() error
	// Output reads a declared output slot. Quantized outputs are
	// dequantized to float32.
	Output(spec TensorSpec) (*tensor.Dense, error)
	// Close releases the model's resources.
	Close() error
}

// Warmup runs one invocation with a zero-filled input so the first real
// request does not pay the backend's lazy-allocation cost.
func Warmup(m Model) error {
	spec := m.InputSpec()

	var dummy *tensor.Dense
	switch spec.DType {
	case Uint8:
		dummy = tensor.New(tensor.WithShape(spec.Shape...), tensor.WithBacking(make([]uint8, spec.Elements())))
	default:
		dummy = tensor.New(tensor.WithShape(spec.Shape...), tensor.WithBacking(make([]float32, spec.Elements())))
	}

	m.Lock()
	defer m.Unlock()

	if err := m.SetInput(dummy); err != nil {
		return errors.Wrap(err, "warmup: set input")
	}
	if err := m.Invoke(); err != nil {
		return errors.Wrap(err, "warmup: invoke")
	}
	return nil
}
