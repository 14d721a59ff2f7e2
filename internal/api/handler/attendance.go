package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

type AttendanceService interface {
	Recent(ctx context.Context, limit int) ([]domain.AttendanceEvent, error)
}

type AttendanceHandler struct {
	service AttendanceService
}

func NewAttendanceHandler(service AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

type AttendanceListResponse struct {
	Events []domain.AttendanceEvent `json:"events"`
	Total  int                      `json:"total"`
}

// Recent GET /v1/attendance?limit=50
func (h *AttendanceHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return domain.ErrValidationFailed.WithMessage("limit must not be negative")
	}

	events, err := h.service.Recent(c.Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(AttendanceListResponse{Events: events, Total: len(events)})
}
