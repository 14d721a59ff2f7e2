package handler

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB

	// maxEnrollTimeout bounds client supplied capture windows.
	maxEnrollTimeout = 60 * time.Second
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// EnrollmentService interface for the service
type EnrollmentService interface {
	Enroll(ctx context.Context, name, contact string, deadline time.Time) (*service.EnrollmentResult, error)
	EnrollImage(ctx context.Context, name, contact string, img image.Image) (*service.EnrollmentResult, error)
}

type EnrollmentHandler struct {
	service EnrollmentService
	logger  *slog.Logger
	now     func() time.Time
}

func NewEnrollmentHandler(service EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{service: service, logger: logger, now: time.Now}
}

type EnrollRequest struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

// Enroll POST /v1/enrollments - capture from the live camera
func (h *EnrollmentHandler) Enroll(c *fiber.Ctx) error {
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.TimeoutSecs < 0 {
		return domain.ErrValidationFailed.WithMessage("timeout_secs must not be negative")
	}

	var deadline time.Time
	if req.TimeoutSecs > 0 {
		timeout := min(time.Duration(req.TimeoutSecs)*time.Second, maxEnrollTimeout)
		deadline = h.now().Add(timeout)
	}

	result, err := h.service.Enroll(c.Context(), req.Name, req.Contact, deadline)
	if err != nil {
		if service.IsEnrollmentFailure(err) {
			h.logger.Info("enrollment rejected", slog.String("name", req.Name), slog.Any("error", err))
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// EnrollImage POST /v1/enrollments/image - enroll from an uploaded photo
func (h *EnrollmentHandler) EnrollImage(c *fiber.Ctx) error {
	img, err := extractImage(c)
	if err != nil {
		return err
	}

	result, err := h.service.EnrollImage(c.Context(), c.FormValue("name"), c.FormValue("contact"), img)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func extractImage(c *fiber.Ctx) (image.Image, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithMessage("image is required")
	}

	if file.Size == 0 || file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(errors.New("image size out of range"))
	}

	if ct := file.Header.Get("Content-Type"); !validImageTypes[ct] {
		return nil, domain.ErrInvalidImage.WithMessage("image must be JPEG or PNG")
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	return imaging.Decode(f)
}
