package api

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"podman-mcp/internal/config"
	"podman-mcp/internal/mcp"
	"podman-mcp/internal/requestid"
	"podman-mcp/internal/storage"
	"podman-mcp/internal/tools"
)

// Pinger checks that the container runtime answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InvocationLister reads the invocation journal.
type InvocationLister interface {
	List(ctx context.Context, opts storage.ListOptions) ([]*storage.Invocation, error)
}

// Server holds the API server components.
type Server struct {
	app        *fiber.App
	dispatcher *mcp.Dispatcher
	registry   *tools.Registry
	runtime    Pinger
	journal    InvocationLister
	config     *config.Config
	logger     *slog.Logger
	accessLog  bool
}

// Option configures a Server.
type Option func(*Server)

// WithJournal exposes the invocation journal on GET /invocations.
func WithJournal(j InvocationLister) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the logger used for server errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithoutAccessLog disables the per-request access log line.
func WithoutAccessLog() Option {
	return func(s *Server) { s.accessLog = false }
}

// New creates a new API server.
func New(cfg *config.Config, d *mcp.Dispatcher, registry *tools.Registry, runtime Pinger, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		registry:   registry,
		runtime:    runtime,
		config:     cfg,
		logger:     slog.Default(),
		accessLog:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "podman-mcp",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())

	// Request id middleware: echo a usable X-Request-ID or generate one
	s.app.Use(func(c *fiber.Ctx) error {
		rid := requestid.Sanitize(c.Get(requestid.Header))
		c.Locals("request_id", rid)
		c.Set(requestid.Header, rid)
		c.SetUserContext(requestid.With(c.UserContext(), rid))
		return c.Next()
	})

	if s.accessLog {
		s.app.Use(logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${method} | ${path} | rid=${locals:request_id}\n",
		}))
	}

	s.setupRoutes()

	return s
}

// Start begins listening on the configured host and port.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Addr())
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders fiber errors (body limit, unknown routes) as JSON.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", c.Path(),
			"request_id", requestid.FromContext(c.UserContext()),
			"error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
