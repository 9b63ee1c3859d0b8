package handlerUtil

import (
	"DentoScan/internal/api/scan"
	"DentoScan/pkg/log"
	"DentoScan/pkg/response"
	"DentoScan/pkg/utils"
	"errors"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

// UnexpectedErrorMessage is what clients see for any error without a mapped
// status.
const UnexpectedErrorMessage = "An unexpected error occurred. Please try again later."

type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	// Upload validation errors from pkg/utils
	if errors.Is(err, utils.ErrNoFile) || errors.Is(err, utils.ErrEmptyFile) {
		h.logger.WithFields(fields).Warn("No file uploaded")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Detail: "No file uploaded",
		})
	}

	if errors.Is(err, utils.ErrFileTooLarge) {
		h.logger.WithFields(fields).Warn("File too large")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Detail: scan.ErrFileTooLarge.Error(),
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code

		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with server error")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}

		// Only the sentinel message is surfaced; wrapped causes stay in the log.
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Detail: respErr.Error(),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Warn("Request rejected by framework")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Detail: fiberErr.Message,
		})
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Detail: UnexpectedErrorMessage,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Detail: "Validation failed: " + err.Error(),
		Code:   "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Detail: fiberUtils.StatusMessage(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
