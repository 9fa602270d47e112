// Package cvdnn runs a gesture model through OpenCV's DNN module.
package cvdnn

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/teslashibe/go-gesture/pkg/frame"
	"github.com/teslashibe/go-gesture/pkg/gesture"
	"gocv.io/x/gocv"
)

// Config holds backend configuration.
type Config struct {
	ModelPath string
	Metadata  gesture.Metadata
	Backend   gocv.NetBackendType
	Target    gocv.NetTargetType
}

// DefaultConfig returns a CPU configuration for the given model.
func DefaultConfig(modelPath string, meta gesture.Metadata) Config {
	return Config{
		ModelPath: modelPath,
		Metadata:  meta,
		Backend:   gocv.NetBackendDefault,
		Target:    gocv.NetTargetCPU,
	}
}

// Classifier wraps a gocv.Net. A Net keeps per-forward state, so the
// Classifier is not reentrant.
type Classifier struct {
	net  gocv.Net
	meta gesture.Metadata
}

// New loads an ONNX model with OpenCV.
func New(cfg Config) (*Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.Metadata.Layout != gesture.LayoutNCHW {
		return nil, fmt.Errorf("%w: opencv backend requires %s layout", gesture.ErrInvalidMetadata, gesture.LayoutNCHW)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model: %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(cfg.Backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(cfg.Target); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &Classifier{net: net, meta: cfg.Metadata}, nil
}

// Name returns the backend name.
func (c *Classifier) Name() string {
	return "opencv"
}

// Classify runs one forward pass. BlobFromImage only supports a single
// scale factor, so Std[0] is applied to every channel.
func (c *Classifier) Classify(ctx context.Context, buf *frame.PixelBuffer) (gesture.Prediction, error) {
	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, buf.BGR())
	if err != nil {
		return gesture.Prediction{}, fmt.Errorf("wrap frame: %w", err)
	}
	defer img.Close()

	m := c.meta
	scale := 1.0 / (255.0 * float64(m.Std[0]))
	// With swapRB set, OpenCV expects the mean in RGB order.
	mean := gocv.NewScalar(
		float64(m.Mean[0])*255,
		float64(m.Mean[1])*255,
		float64(m.Mean[2])*255,
		0,
	)

	blob := gocv.BlobFromImage(img, scale, image.Pt(frame.Width, frame.Height), mean, true, false)
	defer blob.Close()

	c.net.SetInput(blob, m.InputName)
	out := c.net.Forward(m.OutputName)
	defer out.Close()

	if out.Empty() {
		return gesture.Prediction{}, fmt.Errorf("empty network output")
	}

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return gesture.Prediction{}, fmt.Errorf("read output: %w", err)
	}
	return gesture.Decide(scores, m)
}

// Close releases the network.
func (c *Classifier) Close() error {
	return c.net.Close()
}

var _ gesture.Classifier = (*Classifier)(nil)
