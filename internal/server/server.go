// Package server exposes the voice pipeline over HTTP: the voice websocket,
// health, metrics and read-only views of the advisor sinks.
package server

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/transport"
	"github.com/koscakluka/jarvis-voice/internal/config"
	"github.com/koscakluka/jarvis-voice/internal/metrics"
)

const defaultListLimit = 10

type Server struct {
	app     *fiber.App
	adapter *transport.Adapter
	store   *advisor.Store
	metrics *metrics.Metrics

	readLimit int64
	baseCtx   context.Context
	cancel    context.CancelFunc
}

type Option func(*Server)

func WithAdvisorStore(store *advisor.Store) Option {
	return func(s *Server) { s.store = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReadLimit caps the size of a single inbound websocket frame.
func WithReadLimit(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.readLimit = limit
		}
	}
}

// New builds the app around adapter. Session metrics reach Prometheus only
// if adapter was built with the same Metrics as its observer.
func New(adapter *transport.Adapter, opts ...Option) *Server {
	s := &Server{
		adapter:   adapter,
		readLimit: config.DefaultReadLimitBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               "Jarvis Voice",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	if s.metrics != nil {
		app.Use(s.recordRequest)
	}

	app.Get("/health", s.handleHealth)
	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := app.Group("/api")
	api.Get("/notifications", s.handleNotifications)
	api.Get("/email-drafts", s.handleEmailDrafts)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoice))

	s.app = app
	return s
}

func (s *Server) Listen(addr string) error {
	logger.Info("voice server listening", "address", addr)
	return s.app.Listen(addr)
}

// Listener serves on an existing listener, mostly for tests.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and ends the running sessions.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleVoice(c *websocket.Conn) {
	c.SetReadLimit(s.readLimit)

	started := time.Now()
	err := s.adapter.Serve(s.baseCtx, c)
	if s.metrics != nil {
		s.metrics.ObserveSession(time.Since(started))
	}
	if err != nil {
		logger.Error("voice session ended with error", "remote", c.RemoteAddr().String(), "error", err)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	if s.store == nil {
		return c.JSON([]advisor.Notification{})
	}
	return c.JSON(s.store.Notifications(listLimit(c)))
}

func (s *Server) handleEmailDrafts(c *fiber.Ctx) error {
	if s.store == nil {
		return c.JSON([]advisor.EmailDraft{})
	}
	return c.JSON(s.store.EmailDrafts(listLimit(c)))
}

func listLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func (s *Server) recordRequest(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if fiberErr, ok := err.(*fiber.Error); ok {
		status = fiberErr.Code
	}
	route := c.Route().Path
	s.metrics.RecordHTTPRequest(c.Method(), route, status)
	return err
}
