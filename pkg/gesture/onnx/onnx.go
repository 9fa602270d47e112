// Package onnx runs a gesture model with ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/teslashibe/go-gesture/pkg/frame"
	"github.com/teslashibe/go-gesture/pkg/gesture"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

// Config holds backend configuration.
type Config struct {
	ModelPath string
	Metadata  gesture.Metadata

	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string
}

// Classifier holds one session with pre-allocated input and output tensors.
// Tensors are reused across calls, so it is not reentrant; the gesture
// Adapter serializes access.
type Classifier struct {
	session *ort.AdvancedSession
	meta    gesture.Metadata
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// New loads the model and allocates its tensors.
func New(cfg Config) (*Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	envOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	if envErr != nil {
		return nil, envErr
	}

	meta := cfg.Metadata
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Classifier{
		session: session,
		meta:    meta,
		input:   input,
		output:  output,
	}, nil
}

// Name returns the backend name.
func (c *Classifier) Name() string {
	return "onnx"
}

// Classify runs one inference.
func (c *Classifier) Classify(ctx context.Context, buf *frame.PixelBuffer) (gesture.Prediction, error) {
	copy(c.input.GetData(), gesture.Tensor(buf, c.meta))

	if err := c.session.Run(); err != nil {
		return gesture.Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	return gesture.Decide(c.output.GetData(), c.meta)
}

// Close destroys the session and tensors. The shared ONNX environment stays
// up for the life of the process.
func (c *Classifier) Close() error {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}

var _ gesture.Classifier = (*Classifier)(nil)
