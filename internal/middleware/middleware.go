package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

// RateConfig bounds requests per client IP. A zero Rate disables limiting.
type RateConfig struct {
	Rate  float64
	Burst int
}

type middleware struct {
	rateLimitter        *rateLimiter
	loggingMiddleware   fiber.Handler
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, rc RateConfig) Middleware {
	var rateLimit *rateLimiter
	if rc.Rate > 0 {
		burst := rc.Burst
		if burst <= 0 {
			burst = 1
		}
		rateLimit = newRateLimiter(rate.Limit(rc.Rate), burst)
	}

	return &middleware{
		rateLimitter:        rateLimit,
		loggingMiddleware:   newLoggingMiddleware(logger),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware
}
