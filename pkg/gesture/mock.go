package gesture

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-gesture/pkg/frame"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// Concurrent makes the mock report itself as reentrant.
	Concurrent bool

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock that labels every frame "A".
func NewMock() *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
			return Prediction{Label: "A", Confidence: 0.99}, nil
		},
	}
}

// NewStaticMock creates a mock that always returns pred.
func NewStaticMock(pred Prediction) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
			return pred, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
			return Prediction{}, err
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
	m.record("Classify")
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, buf)
	}
	return Prediction{}, nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Name returns the backend name.
func (m *Mock) Name() string {
	return "mock"
}

// Reentrant reports whether the adapter may call the mock concurrently.
func (m *Mock) Reentrant() bool {
	return m.Concurrent
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Classifier at compile time.
var _ Classifier = (*Mock)(nil)
