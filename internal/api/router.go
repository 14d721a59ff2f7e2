package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

type Dependencies struct {
	Enrollment  handler.EnrollmentService
	Identities  handler.IdentityService
	Attendance  handler.AttendanceService
	Annotations handler.AnnotationSource
	Frames      handler.FrameSource
	Camera      handler.CameraMonitor
	Hub         *ws.Hub
	Store       handler.StorePinger // nil for the file backend
	Gatherer    prometheus.Gatherer
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Chamada API",
		// Live enrollment holds the request for the whole capture window.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		BodyLimit:    12 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger, "/health", "/ready", "/metrics", "/v1/live/status", "/v1/live/frame.jpg"))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var camera handler.CameraStatus
	var store handler.StorePinger
	if r.deps != nil {
		camera = r.deps.Camera
		store = r.deps.Store
	}
	healthHandler := handler.NewHealthHandler(store, camera)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	if r.deps.Gatherer != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.app.Group("/v1")

	enrollmentHandler := handler.NewEnrollmentHandler(r.deps.Enrollment, r.logger)
	v1.Post("/enrollments", enrollmentHandler.Enroll)
	v1.Post("/enrollments/image", enrollmentHandler.EnrollImage)

	identityHandler := handler.NewIdentityHandler(r.deps.Identities, r.logger)
	v1.Get("/identities", identityHandler.List)
	v1.Get("/identities/:name", identityHandler.Get)
	v1.Delete("/identities/:name", identityHandler.Delete)

	attendanceHandler := handler.NewAttendanceHandler(r.deps.Attendance)
	v1.Get("/attendance", attendanceHandler.Recent)

	liveHandler := handler.NewLiveHandler(r.deps.Annotations, r.deps.Frames, r.deps.Camera)
	v1.Get("/live/status", liveHandler.Status)
	v1.Get("/live/frame.jpg", liveHandler.Frame)

	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
