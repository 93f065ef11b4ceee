package model

import (
	"log"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var ortInitOnce sync.Once
var ortInitErr error

// initRuntime initializes the shared onnxruntime environment once per
// process. libraryPath may be empty when the runtime is on the default
// loader path.
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNX wraps an onnxruntime session behind the Model contract. The session
// holds preallocated input and output tensors that Run reads and writes in
// place, which is why invocations must be serialized by the embedded lock.
type ONNX struct {
	sync.Mutex

	path    string
	session *ort.AdvancedSession
	in      *ort.Tensor[float32]
	outs    []*ort.Tensor[float32]
	input   TensorSpec
	outputs []TensorSpec
}

// LoadONNX loads an .onnx model, discovers its tensor shapes from the model
// metadata and builds a session with bound input/output tensors.
//
// Arguments:
//   - path: Path to the model file.
//   - libraryPath: Optional path to the onnxruntime shared library.
//
// Returns:
//   - *ONNX: The loaded model handle.
//   - error: Runtime init, metadata or session failure.
func LoadONNX(path, libraryPath string) (*ONNX, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize onnxruntime")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model metadata from %s", path)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.Errorf("model %s declares no inputs or outputs", path)
	}

	m := &ONNX{path: path}
	m.input = ortSpec(inputs[0].Dimensions, 0)

	inShape := make([]int64, len(m.input.Shape))
	for i, d := range m.input.Shape {
		inShape[i] = int64(d)
	}
	m.in, err = ort.NewEmptyTensor[float32](ort.NewShape(inShape...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate input tensor")
	}

	outNames := make([]string, len(outputs))
	outTensors := make([]ort.ArbitraryTensor, len(outputs))
	for i, info := range outputs {
		spec := ortSpec(info.Dimensions, i)
		m.outputs = append(m.outputs, spec)
		outNames[i] = info.Name

		shape := make([]int64, len(spec.Shape))
		for j, d := range spec.Shape {
			shape[j] = int64(d)
		}
		t, terr := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if terr != nil {
			m.Close()
			return nil, errors.Wrap(terr, "failed to allocate output tensor")
		}
		m.outs = append(m.outs, t)
		outTensors[i] = t
	}

	m.session, err = ort.NewAdvancedSession(path,
		[]string{inputs[0].Name}, outNames,
		[]ort.ArbitraryTensor{m.in}, outTensors, nil)
	if err != nil {
		m.Close()
		return nil, errors.Wrapf(err, "failed to create session for %s", path)
	}

	log.Printf("✅ ONNX model loaded: %s input=%v outputs=%d", path, m.input.Shape, len(m.outputs))
	return m, nil
}

// ortSpec converts onnxruntime dimensions to a TensorSpec. Dynamic (-1)
// dimensions are pinned to 1; this pipeline always runs batch size one.
func ortSpec(dims ort.Shape, index int) TensorSpec {
	shape := make([]int, len(dims))
	for i, d := range dims {
		if d < 1 {
			shape[i] = 1
		} else {
			shape[i] = int(d)
		}
	}
	return TensorSpec{Shape: shape, DType: Float32, Index: index}
}

// InputSpec returns the model's declared input tensor spec.
func (m *ONNX) InputSpec() TensorSpec { return m.input }

// OutputSpecs returns the declared output tensor specs.
func (m *ONNX) OutputSpecs() []TensorSpec { return m.outputs }

// SetInput copies the tensor into the session's bound input buffer.
func (m *ONNX) SetInput(in *tensor.Dense) error {
	data, ok := in.Data().([]float32)
	if !ok {
		return errors.Errorf("ONNX input must be float32, got %T", in.Data())
	}
	dst := m.in.GetData()
	if len(data) != len(dst) {
		return errors.Errorf("input tensor mismatch: got %d floats, want %d", len(data), len(dst))
	}
	copy(dst, data)
	return nil
}

// Invoke runs the session on the current input.
func (m *ONNX) Invoke() error {
	return m.session.Run()
}

// Output copies the bound output tensor at the spec's slot.
func (m *ONNX) Output(spec TensorSpec) (*tensor.Dense, error) {
	if spec.Index < 0 || spec.Index >= len(m.outs) {
		return nil, errors.Errorf("no output tensor at slot %d", spec.Index)
	}
	src := m.outs[spec.Index].GetData()
	data := make([]float32, len(src))
	copy(data, src)
	return tensor.New(tensor.WithShape(spec.Shape...), tensor.WithBacking(data)), nil
}

// Close destroys the session and its bound tensors.
func (m *ONNX) Close() error {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.in != nil {
		m.in.Destroy()
		m.in = nil
	}
	for _, t := range m.outs {
		t.Destroy()
	}
	m.outs = nil
	return nil
}
