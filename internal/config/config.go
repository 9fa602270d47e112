// Package config provides configuration helpers for go-gesture commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultEnv            = "development"
	DefaultPort           = "5000"
	DefaultDevOrigin      = "http://localhost:3000"
	DefaultModelPath      = "models/gesture.onnx"
	DefaultMetadataPath   = "models/gesture.yaml"
	DefaultBackend        = BackendONNX
	DefaultRequestTimeout = 5 * time.Second
	DefaultBodyLimitMB    = 10
	DefaultLogLevel       = "info"
)

// Classifier backends.
const (
	BackendONNX   = "onnx"
	BackendOpenCV = "opencv"
)

// EnvProduction is the environment label that enables strict checks and
// JSON logs.
const EnvProduction = "production"

// Config is the server configuration.
type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	ModelPath      string
	MetadataPath   string
	Backend        string
	ONNXRuntimeLib string
	RequestTimeout time.Duration
	BodyLimitMB    int
	LogLevel       string
}

// LoadEnvFile loads variables from .env files into the process environment
// without overriding ones already set. Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Env:            String("ENV", DefaultEnv),
		Port:           String("PORT", DefaultPort),
		ModelPath:      String("MODEL_PATH", DefaultModelPath),
		MetadataPath:   String("MODEL_METADATA", DefaultMetadataPath),
		Backend:        strings.ToLower(String("CLASSIFIER_BACKEND", DefaultBackend)),
		ONNXRuntimeLib: String("ONNXRUNTIME_LIB", ""),
		LogLevel:       String("LOG_LEVEL", DefaultLogLevel),
		AllowedOrigins: List("ALLOWED_ORIGINS"),
	}
	if len(cfg.AllowedOrigins) == 0 && !cfg.IsProduction() {
		cfg.AllowedOrigins = []string{DefaultDevOrigin}
	}

	var err error
	if cfg.RequestTimeout, err = Duration("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.BodyLimitMB, err = Int("BODY_LIMIT_MB", DefaultBodyLimitMB); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	if c.IsProduction() && len(c.AllowedOrigins) == 0 {
		return errors.New("config: ALLOWED_ORIGINS is required in production")
	}
	switch c.Backend {
	case BackendONNX, BackendOpenCV:
	default:
		return fmt.Errorf("config: unknown classifier backend %q", c.Backend)
	}
	if c.Port == "" {
		return errors.New("config: PORT is empty")
	}
	if c.BodyLimitMB <= 0 {
		return fmt.Errorf("config: BODY_LIMIT_MB must be positive, got %d", c.BodyLimitMB)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// IsProduction reports whether Env is production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// BodyLimit returns the request body limit in bytes.
func (c Config) BodyLimit() int {
	return c.BodyLimitMB << 20
}

// String returns the env var or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def when unset.
func Int(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// Duration returns the env var parsed by time.ParseDuration, or def when
// unset. A bare number is taken as seconds.
func Duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// List returns the comma-separated env var with blanks removed.
func List(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
