package model

import (
	"log"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	tflite "github.com/tphakala/go-tflite"
	"gorgonia.org/tensor"
)

// TFLite wraps a TensorFlow Lite interpreter behind the Model contract.
type TFLite struct {
	sync.Mutex

	path        string
	model       *tflite.Model
	interpreter *tflite.Interpreter
	input       TensorSpec
	outputs     []TensorSpec
}

// LoadTFLite loads a .tflite model, allocates its tensors and captures the
// input/output specs.
//
// Arguments:
//   - path: Path to the model file.
//   - threads: Interpreter thread cap; 0 or less uses every CPU.
//
// Returns:
//   - *TFLite: The loaded model handle.
//   - error: Load, allocation or unsupported-dtype failure.
func LoadTFLite(path string, threads int) (*TFLite, error) {
	m := tflite.NewModelFromFile(path)
	if m == nil {
		return nil, errors.Errorf("cannot load TFLite model from %s", path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threadCount(threads))

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		m.Delete()
		return nil, errors.New("cannot create TFLite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		m.Delete()
		return nil, errors.New("TFLite tensor allocation failed")
	}

	t := &TFLite{path: path, model: m, interpreter: interpreter}

	in := interpreter.GetInputTensor(0)
	inputSpec, err := tfliteSpec(in, 0)
	if err != nil {
		t.Close()
		return nil, err
	}
	t.input = inputSpec

	for i := range interpreter.GetOutputTensorCount() {
		spec, err := tfliteSpec(interpreter.GetOutputTensor(i), i)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.outputs = append(t.outputs, spec)
	}

	log.Printf("✅ TFLite model loaded: %s input=%v %s outputs=%d",
		path, t.input.Shape, t.input.DType, len(t.outputs))
	return t, nil
}

// threadCount resolves the configured interpreter thread cap.
func threadCount(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}

func tfliteSpec(t *tflite.Tensor, index int) (TensorSpec, error) {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}

	var dt DType
	switch t.Type() {
	case tflite.Float32:
		dt = Float32
	case tflite.UInt8:
		dt = Uint8
	default:
		return TensorSpec{}, errors.Errorf("unsupported TFLite tensor type %v", t.Type())
	}

	return TensorSpec{Shape: shape, DType: dt, Index: index}, nil
}

// InputSpec returns the model's declared input tensor spec.
func (t *TFLite) InputSpec() TensorSpec { return t.input }

// OutputSpecs returns the declared output tensor specs.
func (t *TFLite) OutputSpecs() []TensorSpec { return t.outputs }

// SetInput copies the tensor into the interpreter's input buffer. The tensor
// dtype and element count must match the declared input spec.
func (t *TFLite) SetInput(in *tensor.Dense) error {
	dst := t.interpreter.GetInputTensor(0)

	switch data := in.Data().(type) {
	case []float32:
		if t.input.DType != Float32 || len(data) != t.input.Elements() {
			return errors.Errorf("input tensor mismatch: got %d float32, want %d %s",
				len(data), t.input.Elements(), t.input.DType)
		}
		copy(dst.Float32s(), data)
	case []uint8:
		if t.input.DType != Uint8 || len(data) != t.input.Elements() {
			return errors.Errorf("input tensor mismatch: got %d uint8, want %d %s",
				len(data), t.input.Elements(), t.input.DType)
		}
		copy(dst.UInt8s(), data)
	default:
		return errors.Errorf("unsupported input backing %T", in.Data())
	}
	return nil
}

// Invoke runs the interpreter on the current input.
func (t *TFLite) Invoke() error {
	if status := t.interpreter.Invoke(); status != tflite.OK {
		return errors.New("TFLite invoke failed")
	}
	return nil
}

// Output reads the output tensor at the spec's slot. Quantized uint8 outputs
// are dequantized with the tensor's scale and zero point so decoders only
// ever see float32 values.
func (t *TFLite) Output(spec TensorSpec) (*tensor.Dense, error) {
	if spec.Index < 0 || spec.Index >= len(t.outputs) {
		return nil, errors.Errorf("no output tensor at slot %d", spec.Index)
	}
	out := t.interpreter.GetOutputTensor(spec.Index)

	data := make([]float32, spec.Elements())
	switch out.Type() {
	case tflite.Float32:
		copy(data, out.Float32s())
	case tflite.UInt8:
		q := out.QuantizationParams()
		scale := float32(q.Scale)
		if scale == 0 {
			scale = 1
		}
		for i, v := range out.UInt8s() {
			if i >= len(data) {
				break
			}
			data[i] = (float32(v) - float32(q.ZeroPoint)) * scale
		}
	default:
		return nil, errors.Errorf("unsupported TFLite output type %v", out.Type())
	}

	return tensor.New(tensor.WithShape(spec.Shape...), tensor.WithBacking(data)), nil
}

// Close releases the interpreter and model.
func (t *TFLite) Close() error {
	if t.interpreter != nil {
		t.interpreter.Delete()
		t.interpreter = nil
	}
	if t.model != nil {
		t.model.Delete()
		t.model = nil
	}
	return nil
}
