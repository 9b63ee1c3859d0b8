package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = "request_id"

// requestIDLocal is the fiber.Ctx locals key set by the request id middleware.
const requestIDLocal = "X-Request-ID"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx derives a context from the request's user context carrying
// the request id.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	requestID, ok := c.Locals(requestIDLocal).(string)
	if !ok || requestID == "" {
		requestID = c.Get(requestIDLocal)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(ctx, requestID)
}
