package server

import (
	"backend-pulsefeed/internal/auth"
	"backend-pulsefeed/internal/config"
	"backend-pulsefeed/internal/engagement"
	"backend-pulsefeed/internal/feed"
	"backend-pulsefeed/internal/social"
	"backend-pulsefeed/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	socialSvc := social.NewService(s.DB, s.Redis)
	feed.RegisterRoutes(s.App.Group("/feed"), feed.NewService(s.DB, socialSvc, s.Redis), jwtMiddleware)
	engagement.RegisterRoutes(s.App.Group("/engagement"), engagement.NewService(s.DB, s.Redis, s.Stream), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
