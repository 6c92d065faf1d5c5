package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders every unhandled error as {"error": message}. Internal
// errors are logged and their details hidden from the caller.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.String("request_id", RequestIDFrom(c)),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
