package config

import (
	"DentoScan/pkg/handlerUtil"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, cfg *AppConfig) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "DentoScan Backend",
			BodyLimit:         int(cfg.MaxUploadMB*1024*1024) + 1024*1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: cfg.Env != "production",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	origins := cfg.Origins()
	allowOrigins := "*"
	if len(origins) > 0 {
		allowOrigins = strings.Join(origins, ",")
	}

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: len(origins) > 0,
	}))

	return app
}

// newErrorHandler keeps framework errors such as 404 and 413 as they are
// and hides everything else behind a fixed message.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(handlerUtil.ErrorResponse{
				Detail: fiberErr.Message,
			})
		}

		logger.WithFields(logrus.Fields{
			"request_id": c.Locals("X-Request-ID"),
			"path":       c.Path(),
			"error":      err.Error(),
		}).Error("Unhandled error")

		return c.Status(fiber.StatusInternalServerError).JSON(handlerUtil.ErrorResponse{
			Detail: handlerUtil.UnexpectedErrorMessage,
		})
	}
}
