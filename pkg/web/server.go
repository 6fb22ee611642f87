// Package web serves the browser page, the MJPEG stream and the toggle
// endpoints.
package web

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-motioncam/pkg/hub"
	"github.com/teslashibe/go-motioncam/pkg/pipeline"
	"github.com/teslashibe/go-motioncam/pkg/state"
)

//go:embed static/index.html
var static embed.FS

// Streamer runs the frame loop for one client at a time.
type Streamer interface {
	Start(ctx context.Context) (*pipeline.Feed, error)
	Stats() pipeline.Stats
}

// Alert is the part of the motion policy the toggles touch.
type Alert interface {
	Alerting() bool
	Disable()
}

// Recorder reports the open recording, if any.
type Recorder interface {
	Path() string
	Recording() bool
}

// Config wires the server to the rest of the program.
type Config struct {
	Flags    *state.Flags
	Stream   Streamer
	Alert    Alert
	Recorder Recorder

	// Hub receives toggle events and backs /ws/status. Optional.
	Hub *hub.Hub

	Version string

	// Debug enables HTTP access logs.
	Debug bool

	Logger *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.Flags == nil:
		return errors.New("web: flags required")
	case c.Stream == nil:
		return errors.New("web: streamer required")
	case c.Alert == nil:
		return errors.New("web: alert required")
	case c.Recorder == nil:
		return errors.New("web: recorder required")
	}
	return nil
}

// Server is the HTTP control surface.
type Server struct {
	app    *fiber.App
	config Config
	logger *slog.Logger
	index  []byte

	// Cancels running streams on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the fiber app and its routes.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	index, err := static.ReadFile("static/index.html")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		logger: cfg.Logger.With("component", "web"),
		index:  index,
		ctx:    ctx,
		cancel: cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "motioncam",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/", s.handleIndex)
	app.Get("/video_feed", s.handleVideoFeed)
	app.Post("/toggle_motion_detection", s.handleToggleDetection)
	app.Post("/toggle_recording", s.handleToggleRecording)
	app.Get("/status", s.handleStatus)
	app.Get("/health", s.handleHealth)

	if cfg.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/status", websocket.New(s.handleStatusWS))
	}

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown ends running streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
