// Package server provides the HTTP surface of the voice demo: room
// provisioning, session event streaming, and the static frontend.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	logx "github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/bot"
	"github.com/teslashibe/go-voicebot/pkg/daily"
)

// Config holds the server settings.
type Config struct {
	Port int

	// StaticDir is the built frontend. Skipped when empty or missing.
	StaticDir string

	// Daily is the room provisioning client. When nil the server still
	// runs, but /api/connect reports that Daily is not configured.
	Daily *daily.Client

	// Bot is the prototype config for launched sessions; RoomURL and
	// Token are filled in per connect.
	Bot bot.Config

	Logger *slog.Logger
}

// Server is the voice demo HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*bot.Session

	// launch creates a session for a connect request.
	launch func(bot.Config) (*bot.Session, error)
}

// New creates the server and registers its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logx.Component("server")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*bot.Session),
		launch:   bot.New,
	}

	app := fiber.New(fiber.Config{
		AppName:               "CAMB AI Voice Demo",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/connect", s.handleConnect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events/:session", websocket.New(s.handleEventsWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("server listening", "port", s.cfg.Port)
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Port))
}

// Shutdown stops the listener and cancels every running session.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) session(id string) *bot.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *Server) addSession(sess *bot.Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// runSession executes the session in the background and forgets it once
// the pipeline exits. Sessions are bounded by room expiry, so an
// abandoned one goes away on its own.
func (s *Server) runSession(sess *bot.Session) {
	go func() {
		defer s.removeSession(sess.ID)
		if err := sess.Run(context.Background()); err != nil {
			s.logger.Error("session ended with error", "session", sess.ID, "error", err)
		}
	}()
}
