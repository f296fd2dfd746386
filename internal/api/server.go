package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	"github.com/acme/engagement-compliance/internal/api/handlers"
	"github.com/acme/engagement-compliance/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	cfg      config.HTTPConfig
	handlers *handlers.HandlerSet
}

// NewServer constructs a new HTTP server.
func NewServer(cfg config.HTTPConfig, handlerSet *handlers.HandlerSet) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          handlerSet.ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(otelfiber.Middleware())
	handlerSet.Register(app)

	return &Server{app: app, cfg: cfg, handlers: handlerSet}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start begins serving HTTP traffic and stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
