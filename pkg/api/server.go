// Package api serves the gmail2s3 HTTP API on fiber.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/syncer"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	factory syncer.Factory
	logger  interfaces.Logger
	// base parents every request context; stop cancels in-flight work on shutdown.
	base    context.Context
	stop    context.CancelFunc
}

func NewServer(cfg *config.Config, factory syncer.Factory, logger interfaces.Logger) *Server {
	s := &Server{cfg: cfg, factory: factory, logger: logger}
	s.base, s.stop = context.WithCancel(context.Background())
	s.app = fiber.New(fiber.Config{
		AppName:               "gmail2s3",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})
	s.routes()
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(processTime())
	s.app.Use(requestMetrics())
	s.app.Use(requestContext(s.base))
	if s.cfg.Gmail2S3.Debug {
		s.app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	s.app.Get("/", s.version)
	s.app.Get("/version", s.version)
	s.app.Get("/openapi.json", s.openapi)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")
	if s.cfg.Gmail2S3.RequireToken {
		v1.Use(checkToken(s.cfg.Gmail2S3.Token))
	}
	v1.Post("/sync_emails", s.syncEmails)
	v1.Post("/sync_emails_info", s.syncEmailsInfo)
	v1.Post("/webhooks/upload_attachment/copy", s.copyUploadedAttachment)
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.logger.Info("gmail2s3 server listening on " + addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		s.stop()
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	}
}
