package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
)

const Version = "0.3.0"

// StorePinger checks the persistent store. The file backend has none.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CameraStatus reports the acquisition state.
type CameraStatus interface {
	Status() frame.Status
}

type HealthHandler struct {
	store  StorePinger
	camera CameraStatus
}

func NewHealthHandler(store StorePinger, camera CameraStatus) *HealthHandler {
	return &HealthHandler{store: store, camera: camera}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Store   string `json:"store,omitempty"`
	Camera  string `json:"camera,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready fails when the store is unreachable. A camera that is down only
// degrades readiness, since enrollment from stills keeps working.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "ready", Store: "ok"}

	if h.store != nil {
		if err := h.store.Ping(c.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Store = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
	}

	if h.camera != nil {
		status := h.camera.Status()
		resp.Camera = string(status)
		if status == frame.StatusUnavailable {
			resp.Status = "degraded"
		}
	}

	return c.JSON(resp)
}
