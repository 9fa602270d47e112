// gestured: gesture recognition service
// Serves POST /predict and the /ws prediction stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-gesture/internal/config"
	"github.com/teslashibe/go-gesture/internal/log"
	"github.com/teslashibe/go-gesture/pkg/gesture"
	"github.com/teslashibe/go-gesture/pkg/gesture/cvdnn"
	"github.com/teslashibe/go-gesture/pkg/gesture/onnx"
	"github.com/teslashibe/go-gesture/pkg/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	backend  = flag.String("backend", "", "Classifier backend: onnx or opencv (default from CLASSIFIER_BACKEND)")
	model    = flag.String("model", "", "Model file (default from MODEL_PATH)")
	metadata = flag.String("metadata", "", "Model metadata file (default from MODEL_METADATA)")
	port     = flag.String("port", "", "HTTP server port (default from PORT)")
	debug    = flag.Bool("debug", false, "Enable debug logging and access logs")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gestured: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.LogLevel, cfg.Env)
	logger := log.L()

	classifier, err := newClassifier(cfg)
	if err != nil {
		return fmt.Errorf("load classifier: %w", err)
	}
	adapter := gesture.NewAdapter(classifier, gesture.WithLogger(logger))
	defer adapter.Close()

	logger.Info("classifier ready",
		"backend", adapter.Name(),
		"model", cfg.ModelPath,
		"metadata", cfg.MetadataPath,
	)

	srv := server.New(server.Config{
		Env:            cfg.Env,
		AllowedOrigins: cfg.AllowedOrigins,
		BodyLimit:      cfg.BodyLimit(),
		RequestTimeout: cfg.RequestTimeout,
		AccessLog:      *debug,
		Logger:         logger,
	}, adapter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Listen(cfg.Addr())
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// applyFlags lets command-line flags override the environment.
func applyFlags(cfg *config.Config) {
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *model != "" {
		cfg.ModelPath = *model
	}
	if *metadata != "" {
		cfg.MetadataPath = *metadata
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
}

// newClassifier builds the configured backend once for the process.
func newClassifier(cfg config.Config) (gesture.Classifier, error) {
	meta, err := gesture.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("model metadata loaded", "classes", len(meta.Classes), "layout", meta.Layout)

	if cfg.Backend == config.BackendOpenCV {
		c, err := cvdnn.New(cvdnn.DefaultConfig(cfg.ModelPath, meta))
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := onnx.New(onnx.Config{
		ModelPath:   cfg.ModelPath,
		Metadata:    meta,
		LibraryPath: cfg.ONNXRuntimeLib,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
