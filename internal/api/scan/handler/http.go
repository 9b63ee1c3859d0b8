package scanHandler

import (
	scanService "DentoScan/internal/api/scan/service"
	"DentoScan/internal/middleware"
	"DentoScan/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

const defaultPredictTimeout = 60 * time.Second

type ScanHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	scanService    scanService.IScanService
	utils          utils.IUtils
	predictTimeout time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ss scanService.IScanService,
	utils utils.IUtils,
	predictTimeout time.Duration,
) *ScanHandler {
	if predictTimeout <= 0 {
		predictTimeout = defaultPredictTimeout
	}

	return &ScanHandler{
		scanService:    ss,
		log:            log,
		validator:      validator,
		middleware:     middleware,
		utils:          utils,
		predictTimeout: predictTimeout,
	}
}

func (h *ScanHandler) Start(srv fiber.Router) {
	srv.Get("/health", h.Health)
	srv.Post("/predict", h.middleware.NewRateLimiter, h.Predict)

	srv.Get("/scans", h.ListScans)
	srv.Get("/scans/:id", h.GetScan)
}
