package inference

import (
	"image"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/sawit-ai/go-grading/images"
	"github.com/sawit-ai/go-grading/model"
)

// ErrDegenerateCrop marks a detection whose padded crop bounds collapsed to
// an empty region. The pipeline downgrades the bunch to "Unknown" instead of
// surfacing it.
var ErrDegenerateCrop = errors.New("degenerate crop bounds")

// Pipeline drives the two-stage flow over one image: square-crop, detect
// bunches, crop and classify each bunch, aggregate a verdict. The two model
// handles are process-wide shared state; everything else lives and dies
// within a single Process call.
type Pipeline struct {
	detector   model.Model
	classifier model.Model
	cfg        Config
}

// NewPipeline wires the loaded detector and classifier to a config.
func NewPipeline(detector, classifier model.Model, cfg Config) *Pipeline {
	return &Pipeline{detector: detector, classifier: classifier, cfg: cfg}
}

// Config returns the pipeline's tunable parameters.
func (p *Pipeline) Config() Config { return p.cfg }

// ModelStatus describes the loaded models for the status endpoint.
type ModelStatus struct {
	Detector   []model.TensorSpec `json:"detector"`
	Classifier []model.TensorSpec `json:"classifier"`
}

// Status reports the input and output specs of both models.
func (p *Pipeline) Status() ModelStatus {
	return ModelStatus{
		Detector:   append([]model.TensorSpec{p.detector.InputSpec()}, p.detector.OutputSpecs()...),
		Classifier: append([]model.TensorSpec{p.classifier.InputSpec()}, p.classifier.OutputSpecs()...),
	}
}

// Process runs the full pipeline on an encoded image buffer.
//
// A decode failure is not an error: it yields a terminal sentinel result
// with zero bunches and the decode-error label, elapsed time still measured.
// Errors are reserved for tensor-shape mismatches against a model's declared
// input spec.
//
// Arguments:
//   - data: Raw encoded image bytes.
//
// Returns:
//   - *Result: The aggregated verdict.
//   - error: Input preparation or model invocation failure.
func (p *Pipeline) Process(data []byte) (*Result, error) {
	start := time.Now()

	img, err := images.DecodeRGB(data)
	if err != nil {
		return p.sentinelResult(LabelDecodeError, start), nil
	}
	return p.run(img, start)
}

// ProcessImage runs the pipeline on an already-decoded image.
func (p *Pipeline) ProcessImage(img image.Image) (*Result, error) {
	return p.run(img, time.Now())
}

func (p *Pipeline) run(img image.Image, start time.Time) (*Result, error) {
	// The same center square the detector preprocessing selects; bunch
	// crops come from this image so detection coordinates stay valid.
	square := images.SquareCrop(img)
	side := square.Bounds().Dx()

	detections, err := p.detect(square)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var seenOrder []string

	for i := range detections {
		crop, err := p.bunchCrop(square, detections[i].Box, side)
		if err != nil {
			// One bad crop never fails the batch.
			detections[i].Classification = LabelUnknown
			detections[i].ClassificationConfidence = 0
			continue
		}

		cls, err := p.classify(crop)
		if err != nil {
			detections[i].Classification = LabelUnknown
			detections[i].ClassificationConfidence = 0
			continue
		}

		detections[i].Classification = cls.TopLabel
		detections[i].ClassificationConfidence = cls.TopConfidence

		if counts[cls.TopLabel] == 0 {
			seenOrder = append(seenOrder, cls.TopLabel)
		}
		counts[cls.TopLabel]++
	}

	return p.aggregate(detections, counts, seenOrder, start), nil
}

// detect prepares the detector input, invokes the model under its lock and
// decodes the first output tensor.
func (p *Pipeline) detect(square image.Image) ([]Detection, error) {
	in, err := PrepareInput(square, p.detector.InputSpec(), RoleDetector)
	if err != nil {
		return nil, err
	}

	out, err := invoke(p.detector, in)
	if err != nil {
		return nil, errors.Wrap(err, "detector invocation failed")
	}
	return DecodeDetections(out, p.cfg), nil
}

// bunchCrop maps a normalized detection box to padded pixel bounds on the
// square image and extracts the crop.
func (p *Pipeline) bunchCrop(square image.Image, box images.Rect, side int) (image.Image, error) {
	pixels := box.ScaleToPixels(side, side)
	bounds := images.PadAndClip(pixels, p.cfg.CropPadding, side, side)
	if bounds.Empty() {
		return nil, ErrDegenerateCrop
	}
	crop := images.Crop(square, bounds)
	if crop.Bounds().Dx() == 0 || crop.Bounds().Dy() == 0 {
		return nil, ErrDegenerateCrop
	}
	return crop, nil
}

func (p *Pipeline) classify(crop image.Image) (ClassificationResult, error) {
	in, err := PrepareInput(crop, p.classifier.InputSpec(), RoleClassifier)
	if err != nil {
		return ClassificationResult{}, err
	}

	out, err := invoke(p.classifier, in)
	if err != nil {
		return ClassificationResult{}, err
	}
	return DecodeClassification(out, p.cfg.ClassLabels), nil
}

// invoke runs one set-input/invoke/read-output cycle under the model's lock.
// The model's execution context is mutated in place, so the triple must not
// interleave with another invocation.
func invoke(m model.Model, in *tensor.Dense) (*tensor.Dense, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.SetInput(in); err != nil {
		return nil, err
	}
	if err := m.Invoke(); err != nil {
		return nil, err
	}
	return m.Output(m.OutputSpecs()[0])
}

// aggregate tallies per-bunch classifications into the document verdict.
// The dominant label is the first maximum encountered in detection order,
// which keeps tie-breaking deterministic.
func (p *Pipeline) aggregate(detections []Detection, counts map[string]int, seenOrder []string, start time.Time) *Result {
	dominant := ""
	for _, label := range seenOrder {
		if dominant == "" || counts[label] > counts[dominant] {
			dominant = label
		}
	}

	label := dominant
	if label == "" {
		label = LabelNoBunches
	}

	r := &Result{
		Bunches:       detections,
		TotalBunches:  len(detections),
		ClassCounts:   counts,
		DominantLabel: dominant,
		HasBunches:    len(detections) > 0,
		Label:         label,
		Predictions:   make([]float32, len(p.cfg.ClassLabels)),
		ElapsedMs:     time.Since(start).Milliseconds(),
	}
	if r.Bunches == nil {
		r.Bunches = []Detection{}
	}

	if dominant != "" {
		for i, name := range p.cfg.ClassLabels {
			if name == dominant {
				r.Predictions[i] = 1.0
				r.TopClass = i
				break
			}
		}
		r.Confidence = 1.0
	}
	return r
}

// sentinelResult is the terminal result for an undecodable image.
func (p *Pipeline) sentinelResult(label string, start time.Time) *Result {
	return &Result{
		Bunches:     []Detection{},
		ClassCounts: map[string]int{},
		Label:       label,
		Predictions: make([]float32, len(p.cfg.ClassLabels)),
		ElapsedMs:   time.Since(start).Milliseconds(),
	}
}
