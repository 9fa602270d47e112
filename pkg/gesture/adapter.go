package gesture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gesture/pkg/frame"
)

// Adapter owns the single classifier instance of the process.
type Adapter struct {
	backend Classifier
	name    string
	logger  *slog.Logger

	// sem serializes non-reentrant backends; nil when the backend is reentrant.
	sem chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool

	predictions atomic.Uint64
	failures    atomic.Uint64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithName overrides the backend name used in logs and errors.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// NewAdapter wraps backend. The backend is not copied or rebuilt; every
// Predict call goes to this one instance.
func NewAdapter(backend Classifier, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		name:    "classifier",
		logger:  slog.Default(),
	}
	if n, ok := backend.(Named); ok {
		a.name = n.Name()
	}
	for _, opt := range opts {
		opt(a)
	}

	if r, ok := backend.(Reentrant); !ok || !r.Reentrant() {
		a.sem = make(chan struct{}, 1)
	}
	return a
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return a.name
}

// Predict classifies buf. It is safe for concurrent use. Waiting for a
// serialized backend honours ctx; the backend call itself is bounded only
// by the backend.
func (a *Adapter) Predict(ctx context.Context, buf *frame.PixelBuffer) (Result, error) {
	if a.closed.Load() {
		return Result{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if a.sem != nil {
		select {
		case a.sem <- struct{}{}:
			defer func() { <-a.sem }()
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	start := time.Now()
	pred, err := a.classify(ctx, buf)
	a.predictions.Add(1)
	if err != nil {
		a.failures.Add(1)
		a.logger.Error("classifier failed",
			"backend", a.name,
			"error", err,
			"duration", time.Since(start),
		)
		return Result{}, err
	}

	a.logger.Debug("classified frame",
		"backend", a.name,
		"label", pred.Label,
		"confidence", pred.Confidence,
		"duration", time.Since(start),
	)

	if pred.Label == "" {
		return None(), nil
	}
	return Result{Label: pred.Label, Confidence: pred.Confidence, Detected: true}, nil
}

// classify calls the backend, converting errors and panics into
// ClassifierError. Context errors pass through untouched so transports can
// tell a deadline from a fault.
func (a *Adapter) classify(ctx context.Context, buf *frame.PixelBuffer) (pred Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = Prediction{}
			err = &ClassifierError{Backend: a.name, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	pred, err = a.backend.Classify(ctx, buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Prediction{}, ctxErr
		}
		return Prediction{}, &ClassifierError{Backend: a.name, Err: err}
	}
	return pred, nil
}

// Stats contains adapter counters.
type Stats struct {
	Backend     string `json:"backend"`
	Predictions uint64 `json:"predictions"`
	Failures    uint64 `json:"failures"`
}

// Stats returns adapter counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Backend:     a.name,
		Predictions: a.predictions.Load(),
		Failures:    a.failures.Load(),
	}
}

// Close releases the backend. Subsequent Predict calls fail with ErrClosed.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.sem != nil {
			// Wait for an in-flight call before tearing the model down.
			a.sem <- struct{}{}
			defer func() { <-a.sem }()
		}
		err = a.backend.Close()
	})
	return err
}
