package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error: ErrorBody{Code: "HTTP_ERROR", Message: fiberErr.Message},
			})
		}

		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			if appErr.StatusCode >= 500 {
				logger.Error("internal error",
					slog.String("request_id", requestID(c)),
					slog.String("code", appErr.Code),
					slog.String("message", appErr.Message),
					slog.Any("error", appErr.Err),
				)
			}

			return c.Status(appErr.StatusCode).JSON(ErrorResponse{
				Error: ErrorBody{Code: appErr.Code, Message: appErr.Message},
			})
		}

		// O cliente desistiu ou o servidor está desligando.
		if errors.Is(err, context.Canceled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: ErrorBody{Code: "CANCELED", Message: "Request canceled"},
			})
		}

		logger.Error("unhandled error",
			slog.String("request_id", requestID(c)),
			slog.Any("error", err),
			slog.String("path", c.Path()),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"},
		})
	}
}
