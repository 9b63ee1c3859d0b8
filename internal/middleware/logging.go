package middleware

import (
	"DentoScan/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// newLoggingMiddleware writes one access log line per request. Bodies are
// never logged; uploads are radiographs and can carry patient metadata.
func newLoggingMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		err := c.Next()
		if err != nil {
			// Let the app ErrorHandler write the response so the status
			// below reflects what the client receives.
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()

		logFields := log.Fields{
			"request_id":     requestID,
			"method":         c.Method(),
			"path":           c.Path(),
			"status":         status,
			"latency_ms":     time.Since(start).Milliseconds(),
			"ip":             c.IP(),
			"user_agent":     c.Get(fiber.HeaderUserAgent),
			"content_length": c.Request().Header.ContentLength(),
			"response_size":  len(c.Response().Body()),
		}

		entry := logger.WithFields(logFields)
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("Server error")
		case status >= fiber.StatusBadRequest:
			entry.Warn("Client error")
		default:
			entry.Info("Success")
		}

		return nil
	}
}
