package gesture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-gesture/pkg/frame"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func blank() *frame.PixelBuffer {
	return &frame.PixelBuffer{Pix: make([]uint8, frame.Width*frame.Height*frame.Channels)}
}

func TestAdapter_Detected(t *testing.T) {
	a := NewAdapter(NewMock(), WithLogger(quiet))

	res, err := a.Predict(context.Background(), blank())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !res.Detected || res.Label != "A" {
		t.Errorf("Predict = %+v, want detected label A", res)
	}
	if a.Name() != "mock" {
		t.Errorf("Name = %q, want mock", a.Name())
	}
}

func TestAdapter_NoGestureIsNotAnError(t *testing.T) {
	a := NewAdapter(NewStaticMock(Prediction{}), WithLogger(quiet))

	res, err := a.Predict(context.Background(), blank())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Detected || res.Label != "" {
		t.Errorf("Predict = %+v, want no gesture", res)
	}
}

func TestAdapter_ErrorBecomesClassifierError(t *testing.T) {
	cause := errors.New("tensor shape mismatch")
	a := NewAdapter(WithError(cause), WithLogger(quiet), WithName("onnx"))

	_, err := a.Predict(context.Background(), blank())
	if !IsClassifierError(err) {
		t.Fatalf("expected ClassifierError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("ClassifierError should unwrap to the cause")
	}

	var ce *ClassifierError
	if !errors.As(err, &ce) || ce.Backend != "onnx" {
		t.Errorf("errors.As ClassifierError = %+v", ce)
	}
	if a.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", a.Stats().Failures)
	}
}

func TestAdapter_PanicIsRecovered(t *testing.T) {
	m := &Mock{ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
		panic("index out of range")
	}}
	a := NewAdapter(m, WithLogger(quiet))

	_, err := a.Predict(context.Background(), blank())
	var ce *ClassifierError
	if !errors.As(err, &ce) || !ce.Panic {
		t.Fatalf("expected panic ClassifierError, got %v", err)
	}

	// The semaphore must be released after a panic.
	done := make(chan struct{})
	go func() {
		a.Predict(context.Background(), blank())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("adapter deadlocked after panic")
	}
}

func TestAdapter_SerializesNonReentrantBackend(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	m := &Mock{ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return Prediction{Label: "B"}, nil
	}}
	a := NewAdapter(m, WithLogger(quiet))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Predict(context.Background(), blank()); err != nil {
				t.Errorf("Predict: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent calls = %d, want 1", got)
	}
	if m.CallCount("Classify") != 16 {
		t.Errorf("Classify calls = %d, want 16", m.CallCount("Classify"))
	}
}

func TestAdapter_ReentrantBackendRunsConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	m := &Mock{Concurrent: true, ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
		started.Add(1)
		<-release
		return Prediction{}, nil
	}}
	a := NewAdapter(m, WithLogger(quiet))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Predict(context.Background(), blank())
		}()
	}

	deadline := time.Now().Add(time.Second)
	for started.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if started.Load() != 2 {
		t.Errorf("reentrant backend saw %d concurrent calls, want 2", started.Load())
	}
}

func TestAdapter_DeadlineWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	m := &Mock{ClassifyFunc: func(ctx context.Context, buf *frame.PixelBuffer) (Prediction, error) {
		<-release
		return Prediction{Label: "A"}, nil
	}}
	a := NewAdapter(m, WithLogger(quiet))

	go a.Predict(context.Background(), blank())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Predict(ctx, blank())
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if IsClassifierError(err) {
		t.Error("deadline must not be reported as a classifier fault")
	}
}

func TestAdapter_Close(t *testing.T) {
	m := NewMock()
	a := NewAdapter(m, WithLogger(quiet))

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.CallCount("Close") != 1 {
		t.Errorf("backend Close calls = %d, want 1", m.CallCount("Close"))
	}

	_, err := a.Predict(context.Background(), blank())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Predict after Close = %v, want ErrClosed", err)
	}
}
