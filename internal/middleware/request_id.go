package middleware

import (
	"DentoScan/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"time"
)

const RequestIDKey = "X-Request-ID"

const maxRequestIDLength = 128

// NewRequestIDMiddleware reuses a well-formed client X-Request-ID and mints
// a ULID otherwise. The chosen id is stored in locals and echoed back.
func NewRequestIDMiddleware() fiber.Handler {
	ids := utils.New(0)

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if !validRequestID(requestID) {
			generated, err := ids.NewULIDFromTimestamp(time.Now())
			if err != nil {
				return err
			}
			requestID = generated
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}

// validRequestID accepts printable ASCII only, so client ids cannot inject
// control characters into log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
