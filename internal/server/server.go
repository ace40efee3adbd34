// Package server exposes the pinger over HTTP with Fiber.
//
// Routes:
//
//	POST /ping        manual trigger (bearer token)
//	GET  /status      last report as json, html, csv or ndjson
//	GET  /endpoints   resolved endpoint list
//	PUT  /endpoints   replace the persisted endpoint list (bearer token)
//	GET  /health      liveness
//	GET  /ready       store reachability
//	GET  /metrics     Prometheus metrics
package server

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/Sternrassler/update-pinger/pkg/pinger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed views/*.html
var viewsFS embed.FS

// Config holds HTTP server configuration.
type Config struct {
	// AuthToken guards the write routes. When empty every guarded request is rejected.
	AuthToken string

	// ReadyTimeout bounds the store ping behind /ready.
	ReadyTimeout time.Duration
}

// Server wires the pinger service into a Fiber app.
type Server struct {
	app    *fiber.App
	svc    *pinger.Service
	config Config
	logger zerolog.Logger
}

// New creates the server and registers all routes.
func New(svc *pinger.Service, config Config) *Server {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 2 * time.Second
	}

	s := &Server{
		svc:    svc,
		config: config,
		logger: logging.NewLogger("server"),
	}

	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	engine.AddFunc("lower", strings.ToLower)

	s.app = fiber.New(fiber.Config{
		AppName:               "update-pinger",
		Views:                 engine,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	s.app.Use(s.requestLogger)
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/status?format=html", fiber.StatusFound)
	})
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{})))

	s.app.Post("/ping", s.requireAuth, s.handlePing)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/endpoints", s.handleGetEndpoints)
	s.app.Put("/endpoints", s.requireAuth, s.handlePutEndpoints)

	// Anything else on a known path is a disallowed method.
	for _, path := range []string{"/ping", "/status", "/endpoints", "/health", "/ready", "/metrics"} {
		s.app.All(path, methodNotAllowed)
	}
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
	return err
}

// requireAuth checks the bearer token in constant time.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || s.config.AuthToken == "" ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.config.AuthToken)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Next()
}

func methodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "method not allowed"})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("OK")
}

func (s *Server) handleReady(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.ReadyTimeout)
	defer cancel()

	if err := s.svc.Store().Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Store not ready")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
