package scanHandler

import (
	"DentoScan/internal/api/scan"
	contextPkg "DentoScan/pkg/context"
	"DentoScan/pkg/handlerUtil"
	"DentoScan/pkg/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"time"
)

func (h *ScanHandler) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(scan.HealthResponse{Status: "healthy"})
}

func (h *ScanHandler) Predict(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.predictTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, scan.ErrMissingFile, ctx.Path(), "form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing radiograph upload")

	if err := h.utils.ValidateUploadFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_upload_file")
	}

	data, err := h.utils.ReadUploadFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload_file")
	}

	result, err := h.scanService.Analyze(c, scan.Upload{
		FileName: file.Filename,
		Data:     data,
	})
	if err != nil {
		if c.Err() == context.DeadlineExceeded {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"scan_id":     result.ScanID,
			"path":        ctx.Path(),
			"predictions": len(result.Predictions),
			"cached":      result.Cached,
		}).Info("Radiograph analyzed")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *ScanHandler) ListScans(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query scan.ListScansQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, scan.ErrInvalidQuery, ctx.Path(), "parse_query")
	}

	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	result, err := h.scanService.ListScans(c, query.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_scans")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *ScanHandler) GetScan(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	result, err := h.scanService.GetScan(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_scan")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}
