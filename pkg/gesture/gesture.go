// Package gesture wraps a hand-gesture classifier behind a stable,
// concurrency-safe contract.
//
// A Classifier is the external model capability. It is constructed once at
// startup and handed to NewAdapter; handlers only ever talk to the Adapter:
//
//	backend, _ := onnx.New(modelPath, meta)
//	adapter := gesture.NewAdapter(backend, gesture.WithLogger(logger))
//	defer adapter.Close()
//
//	res, err := adapter.Predict(ctx, buf)
//	if err == nil && !res.Detected {
//	    // no hand in frame, not an error
//	}
package gesture

import (
	"context"

	"github.com/teslashibe/go-gesture/pkg/frame"
)

// Classifier is the external gesture model.
type Classifier interface {
	// Classify labels one canonical frame. An empty Prediction.Label means
	// no gesture was found.
	Classify(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error)

	// Close releases model resources.
	Close() error
}

// Reentrant is implemented by classifiers that may be called concurrently.
// Classifiers that do not implement it are serialized by the Adapter.
type Reentrant interface {
	Reentrant() bool
}

// Named is implemented by classifiers that report a backend name for logs.
type Named interface {
	Name() string
}

// Prediction is the raw classifier output.
type Prediction struct {
	Label      string
	Confidence float64
}

// Result is what the Adapter returns to transports.
type Result struct {
	// Label is the recognized gesture, empty when Detected is false.
	Label string

	// Confidence is the classifier score for Label (0 when not detected).
	Confidence float64

	// Detected is false when no hand/gesture was found.
	Detected bool
}

// None is the result for a frame without a recognizable gesture.
func None() Result {
	return Result{}
}
