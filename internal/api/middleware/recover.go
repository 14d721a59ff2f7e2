package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Recover turns a handler panic into domain.ErrInternal, so the ErrorHandler
// renders it with the same body as any other failure.
func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("handler panicked",
				slog.String("request_id", requestID(c)),
				slog.String("route", c.Method()+" "+c.Path()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = domain.ErrInternal.WithError(fmt.Errorf("panic: %v", r))
		}()
		return c.Next()
	}
}
