package gesture

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/teslashibe/go-gesture/pkg/frame"
	"gopkg.in/yaml.v3"
)

// Tensor layouts.
const (
	LayoutNCHW = "nchw"
	LayoutNHWC = "nhwc"
)

// Metadata describes a model's input/output contract and label mapping.
// It is loaded from a JSON or YAML sidecar next to the model file.
type Metadata struct {
	InputName   string    `json:"input_name" yaml:"input_name"`
	OutputName  string    `json:"output_name" yaml:"output_name"`
	InputShape  []int64   `json:"input_shape" yaml:"input_shape"`
	OutputShape []int64   `json:"output_shape" yaml:"output_shape"`
	Classes     []string  `json:"classes" yaml:"classes"`
	ImageSize   int       `json:"image_size" yaml:"image_size"`
	Layout      string    `json:"layout" yaml:"layout"`
	Mean        []float32 `json:"mean" yaml:"mean"`
	Std         []float32 `json:"std" yaml:"std"`

	// Softmax is set when the model emits logits rather than probabilities.
	Softmax bool `json:"softmax" yaml:"softmax"`

	// MinConfidence is the score below which a frame counts as "no gesture".
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// NoneLabel is the class the model uses for "no hand", if any.
	NoneLabel string `json:"none_label" yaml:"none_label"`
}

// LoadMetadata reads a .json, .yaml or .yml sidecar file.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &meta)
	default:
		err = json.Unmarshal(raw, &meta)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("parse metadata %s: %w", path, err)
	}

	meta.ApplyDefaults()
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// ApplyDefaults fills unset fields for a 224x224 RGB NCHW model.
func (m *Metadata) ApplyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ImageSize == 0 {
		m.ImageSize = frame.Width
	}
	if m.Layout == "" {
		m.Layout = LayoutNCHW
	}
	m.Layout = strings.ToLower(m.Layout)
	if len(m.Mean) == 0 {
		m.Mean = []float32{0, 0, 0}
	}
	if len(m.Std) == 0 {
		m.Std = []float32{1, 1, 1}
	}
	if len(m.InputShape) == 0 {
		if m.Layout == LayoutNHWC {
			m.InputShape = []int64{1, frame.Height, frame.Width, frame.Channels}
		} else {
			m.InputShape = []int64{1, frame.Channels, frame.Height, frame.Width}
		}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
}

// Validate checks the metadata against the canonical frame geometry.
func (m *Metadata) Validate() error {
	if len(m.Classes) == 0 {
		return ErrNoClasses
	}
	if m.ImageSize != frame.Width || frame.Width != frame.Height {
		return fmt.Errorf("%w: image_size %d, frames are %dx%d", ErrInvalidMetadata, m.ImageSize, frame.Width, frame.Height)
	}
	if m.Layout != LayoutNCHW && m.Layout != LayoutNHWC {
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidMetadata, m.Layout)
	}
	if len(m.Mean) != frame.Channels || len(m.Std) != frame.Channels {
		return fmt.Errorf("%w: mean/std need %d values", ErrInvalidMetadata, frame.Channels)
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("%w: std must be non-zero", ErrInvalidMetadata)
		}
	}
	if n := elements(m.InputShape); n != frame.Width*frame.Height*frame.Channels {
		return fmt.Errorf("%w: input_shape %v has %d elements", ErrInvalidMetadata, m.InputShape, n)
	}
	if n := elements(m.OutputShape); n < len(m.Classes) {
		return fmt.Errorf("%w: output_shape %v smaller than %d classes", ErrInvalidMetadata, m.OutputShape, len(m.Classes))
	}
	return nil
}

func elements(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// Tensor converts a frame into the model's float input: scaled to [0,1],
// then normalized as (v - mean) / std, in the metadata layout.
func Tensor(buf *frame.PixelBuffer, m Metadata) []float32 {
	const plane = frame.Width * frame.Height
	out := make([]float32, plane*frame.Channels)

	for p := 0; p < plane; p++ {
		for c := 0; c < frame.Channels; c++ {
			v := (float32(buf.Pix[p*frame.Channels+c])/255 - m.Mean[c]) / m.Std[c]
			if m.Layout == LayoutNHWC {
				out[p*frame.Channels+c] = v
			} else {
				out[c*plane+p] = v
			}
		}
	}
	return out
}

// Decide maps raw model scores to a Prediction. Frames whose best class is
// NoneLabel or whose score is below MinConfidence yield an empty label.
func Decide(scores []float32, m Metadata) (Prediction, error) {
	if len(scores) < len(m.Classes) {
		return Prediction{}, fmt.Errorf("%w: %d scores for %d classes", ErrInvalidMetadata, len(scores), len(m.Classes))
	}
	scores = scores[:len(m.Classes)]

	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}
	if m.Softmax {
		softmax(probs)
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	label, conf := m.Classes[best], probs[best]
	if math.IsNaN(conf) {
		return Prediction{}, fmt.Errorf("model produced NaN scores")
	}
	if label == m.NoneLabel || conf < m.MinConfidence {
		return Prediction{}, nil
	}
	return Prediction{Label: label, Confidence: conf}, nil
}

func softmax(v []float64) {
	maxV := math.Inf(-1)
	for _, x := range v {
		maxV = math.Max(maxV, x)
	}
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - maxV)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}
