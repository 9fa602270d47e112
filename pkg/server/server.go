// Package server exposes gesture recognition over HTTP and websocket.
//
// Routes:
//
//	GET  /              liveness text
//	GET  /health        JSON status
//	GET  /api/sessions  hub statistics and live sessions
//	POST /predict       one frame, inline JSON or multipart upload
//	POST /predict/image one frame, multipart field "image"
//	GET  /ws            streaming "video frame" -> broadcast "prediction"
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/teslashibe/go-gesture/pkg/frame"
	"github.com/teslashibe/go-gesture/pkg/gesture"
	"github.com/teslashibe/go-gesture/pkg/hub"
)

// Default server settings.
const (
	DefaultBodyLimit      = 10 << 20
	DefaultRequestTimeout = 5 * time.Second
)

// Predictor classifies one normalized frame. *gesture.Adapter implements it.
type Predictor interface {
	Predict(ctx context.Context, buf *frame.PixelBuffer) (gesture.Result, error)
}

// Config holds server configuration.
type Config struct {
	// Env is reported by the liveness endpoints.
	Env string

	// AllowedOrigins gates CORS and websocket upgrades. Empty allows any.
	AllowedOrigins []string

	// BodyLimit is the maximum request body in bytes.
	BodyLimit int

	// RequestTimeout bounds decode plus classification per request or
	// stream event. Zero disables the deadline.
	RequestTimeout time.Duration

	// AccessLog enables per-request logging.
	AccessLog bool

	Logger *slog.Logger
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Env:            "development",
		BodyLimit:      DefaultBodyLimit,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Server wires the prediction pipeline to its transports.
type Server struct {
	cfg       Config
	app       *fiber.App
	hub       *hub.Hub
	predictor Predictor
	logger    *slog.Logger

	// ctx is cancelled on Shutdown so in-flight predictions stop waiting.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server around predictor.
func New(cfg Config, predictor Predictor) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		hub:       hub.New("predictions", cfg.Logger),
		predictor: predictor,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Gesture Backend",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.corsOrigins(),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Get("/api/sessions", s.handleSessions)

	app.Post("/predict", s.handlePredict)
	app.Post("/predict/image", s.handlePredictImage)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStream, websocket.Config{
		Origins:         s.wsOrigins(),
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 4 << 10,
	}))

	s.app = app
	return s
}

func (s *Server) corsOrigins() string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return "*"
	}
	return strings.Join(s.cfg.AllowedOrigins, ",")
}

func (s *Server) wsOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server listening", "addr", addr, "env", s.cfg.Env)
	return s.app.Listen(addr)
}

// Listener serves on an existing listener until Shutdown.
func (s *Server) Listener(ln net.Listener) error {
	s.logger.Info("server listening", "addr", ln.Addr().String(), "env", s.cfg.Env)
	return s.app.Listener(ln)
}

// Shutdown stops accepting work, disconnects every stream session and
// waits for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.hub.Close()
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleError renders every error as {"error": "..."}. Internal details of
// unexpected failures are logged, not returned.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error("request failed", "route", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString("Gesture Backend Running (ENV=" + s.cfg.Env + ")")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"env":      s.cfg.Env,
		"sessions": s.hub.Count(),
	})
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	resp := fiber.Map{
		"stats":    s.hub.Stats(),
		"sessions": s.hub.Infos(),
	}
	if st, ok := s.predictor.(interface{ Stats() gesture.Stats }); ok {
		resp["classifier"] = st.Stats()
	}
	return c.JSON(resp)
}
