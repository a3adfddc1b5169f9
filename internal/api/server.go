package api

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"singalong/internal/acquisition"
	"singalong/internal/logging"
	"singalong/internal/separation"
	"singalong/internal/telemetry"
)

const bodyLimit = 1 << 20

// Options configures a Server.
type Options struct {
	// Token enables bearer authentication when non-empty.
	Token  string
	Logger *slog.Logger
}

// Server is the fiber application plus the websocket hub feeding it.
type Server struct {
	app      *fiber.App
	svc      Service
	hub      *Hub
	validate *validator.Validate
	logger   *slog.Logger
	token    string

	subMu       sync.Mutex
	closed      bool
	unsubscribe []func()
}

// New builds the routes for svc.
func New(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "api")

	s := &Server{
		svc:      svc,
		hub:      NewHub(logger),
		validate: validator.New(),
		logger:   logger,
		token:    opts.Token,
	}
	s.app = fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Serve runs the hub, forwards service changes to it, and accepts HTTP on
// listener until Shutdown. ctx bounds the hub. Callers racing Serve against
// Shutdown should call Attach first.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go s.hub.Run(ctx)
	s.Attach()
	return s.app.Listener(listener)
}

// Attach subscribes the hub to service changes. It is a no-op once attached
// and reports false after Shutdown.
func (s *Server) Attach() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return false
	}
	if s.unsubscribe == nil {
		s.subscribe()
	}
	return true
}

// Shutdown stops accepting requests and detaches from the service.
func (s *Server) Shutdown(ctx context.Context) error {
	s.subMu.Lock()
	s.closed = true
	unsubs := s.unsubscribe
	s.unsubscribe = nil
	s.subMu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) subscribe() {
	s.unsubscribe = append(s.unsubscribe,
		s.svc.SubscribeDownloads(func(jobs []acquisition.Job) {
			s.hub.Publish(Event{Type: EventDownloads, Jobs: FromDownloadJobs(jobs)})
		}),
		s.svc.SubscribeSeparations(func(jobs []separation.Job) {
			s.hub.Publish(Event{Type: EventSeparations, Jobs: FromSeparationJobs(jobs)})
		}),
		s.svc.SubscribeCatalog(func() {
			s.hub.Publish(Event{Type: EventCatalogChanged})
		}),
	)
}

func (s *Server) routes() {
	app := s.app
	app.Use(recover.New())
	app.Use(s.requestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	api := app.Group("/api", bearerAuth(s.token, false))
	api.Get("/status", s.handleStatus)

	downloads := api.Group("/downloads")
	downloads.Post("/validate", s.handleValidateDownload)
	downloads.Post("/", s.handleQueueDownload)
	downloads.Get("/", s.handleListDownloads)
	downloads.Get("/:id", s.handleGetDownload)

	separations := api.Group("/separations")
	separations.Post("/", s.handleQueueSeparation)
	separations.Get("/", s.handleListSeparations)
	separations.Get("/:id", s.handleGetSeparation)

	library := api.Group("/library")
	library.Get("/", s.handleListLibrary)
	library.Post("/import", s.handleImport)
	library.Get("/:id", s.handleGetEntry)
	library.Get("/:id/playback", s.handlePlayback)
	library.Delete("/:id", s.handleRemoveEntry)

	api.Get("/models", s.handleListModels)
	api.Post("/models/:tier/download", s.handleDownloadModel)

	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings/quality", s.handleSetQuality)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", bearerAuth(s.token, true), websocket.New(func(conn *websocket.Conn) {
		s.hub.HandleConnection(conn, s.initialEvents)
	}))
}

func (s *Server) initialEvents() []Event {
	return []Event{
		{Type: EventDownloads, Jobs: FromDownloadJobs(s.svc.Downloads())},
		{Type: EventSeparations, Jobs: FromSeparationJobs(s.svc.Separations())},
	}
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("api request",
		logging.String("method", c.Method()),
		logging.String("path", c.Path()),
		logging.Int("status", c.Response().StatusCode()),
		logging.Duration("latency", time.Since(start)),
	)
	return err
}

// bind parses the JSON body into dst and validates it. A false return means
// the error response was already written.
func (s *Server) bind(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, validationError(c, "invalid request body", nil)
	}
	if err := s.validate.Struct(dst); err != nil {
		return false, validationError(c, "validation failed", formatValidationErrors(err))
	}
	return true, nil
}
