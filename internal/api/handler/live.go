package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

type AnnotationSource interface {
	Annotations() *domain.AnnotationSet
}

type FrameSource interface {
	Latest() (frame.Frame, bool)
	Stats() frame.Stats
}

type CameraMonitor interface {
	CameraStatus
	Reopens() uint64
}

type LiveHandler struct {
	annotations AnnotationSource
	frames      FrameSource
	camera      CameraMonitor
}

func NewLiveHandler(annotations AnnotationSource, frames FrameSource, camera CameraMonitor) *LiveHandler {
	return &LiveHandler{annotations: annotations, frames: frames, camera: camera}
}

type LiveStatusResponse struct {
	Camera        string                `json:"camera"`
	CameraReopens uint64                `json:"camera_reopens"`
	Frames        frame.Stats           `json:"frames"`
	Annotations   *domain.AnnotationSet `json:"annotations"`
}

// Status GET /v1/live/status
func (h *LiveHandler) Status(c *fiber.Ctx) error {
	return c.JSON(LiveStatusResponse{
		Camera:        string(h.camera.Status()),
		CameraReopens: h.camera.Reopens(),
		Frames:        h.frames.Stats(),
		Annotations:   h.annotations.Annotations(),
	})
}

// Frame GET /v1/live/frame.jpg - latest raw frame
func (h *LiveHandler) Frame(c *fiber.Ctx) error {
	f, ok := h.frames.Latest()
	if !ok {
		return domain.ErrFrameUnavailable
	}

	data, err := imaging.JPEGBytes(f.Image)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Frame-Seq", fmt.Sprint(f.Seq))
	return c.Send(data)
}
