package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/config"
	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/session"
	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/stream"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Store  *session.Store
	Stream *stream.Broadcaster
}

func NewServer(cfg config.Config, store *session.Store) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Store:  store,
		Stream: stream.NewBroadcaster(store, stream.NewHub(), cfg.StreamSendBuffer),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": s.Store.Len()})
	})

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
