package config

import (
	"DentoScan/database/postgres"
	scanHandler "DentoScan/internal/api/scan/handler"
	scanRepository "DentoScan/internal/api/scan/repository"
	scanService "DentoScan/internal/api/scan/service"
	"DentoScan/internal/middleware"
	"DentoScan/pkg/dicom"
	"DentoScan/pkg/gemini"
	"DentoScan/pkg/nms"
	"DentoScan/pkg/openai"
	"DentoScan/pkg/redis"
	"DentoScan/pkg/roboflow"
	"DentoScan/pkg/s3"
	"DentoScan/pkg/storage"
	"DentoScan/pkg/utils"
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"os"
)

type ServerOption func(*Server) error

// reportClient is what both LLM providers expose.
type reportClient interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

type Server struct {
	engine     *fiber.App
	cfg        *AppConfig
	db         *sqlx.DB
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	handlers   []handler
	redisCache redis.IRedis
	storage    storage.IStorage
	detector   roboflow.IDetector
	reporter   reportClient
	converter  dicom.IConverter
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.storage == nil {
		return nil, fmt.Errorf("storage is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

// WithDatabase connects to Postgres when DB_HOST is set. Without it the
// service runs without scan history.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be initialized before database")
		}
		if s.cfg.Database.Host == "" {
			s.log.Warn("DB_HOST not set, scan history disabled")
			return nil
		}

		db, err := postgres.New(postgres.Config{
			Host:     s.cfg.Database.Host,
			Port:     s.cfg.Database.Port,
			User:     s.cfg.Database.User,
			Password: s.cfg.Database.Password,
			Name:     s.cfg.Database.Name,
			SSLMode:  s.cfg.Database.SSLMode,
		})
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

// WithRedisCache enables the response cache when REDIS_ADDRESS is set.
func WithRedisCache() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be initialized before redis")
		}
		if s.cfg.Redis.Address == "" {
			s.log.Warn("REDIS_ADDRESS not set, response cache disabled")
			return nil
		}

		s.redisCache = redis.New(redis.Config{
			Address:  s.cfg.Redis.Address,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
			Prefix:   s.cfg.Redis.Prefix,
		}, s.log)
		return nil
	}
}

func WithStorage() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be initialized before storage")
		}

		for _, dir := range []string{s.cfg.Storage.StaticDir, s.cfg.Storage.UploadDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}

		switch s.cfg.Storage.Driver {
		case "s3":
			client, err := s3.New(s3.Config{
				Region:          s.cfg.AWS.Region,
				AccessKeyID:     s.cfg.AWS.AccessKeyID,
				SecretAccessKey: s.cfg.AWS.SecretAccessKey,
				BucketName:      s.cfg.AWS.BucketName,
				KeyPrefix:       s.cfg.AWS.KeyPrefix,
			})
			if err != nil {
				if s.log != nil {
					s.log.Errorf("Failed to initialize S3 client: %v", err)
				}
				return fmt.Errorf("failed to create S3 client: %w", err)
			}
			s.storage = client
		default:
			local, err := storage.NewLocal(s.cfg.Storage.StaticDir, "/static")
			if err != nil {
				return fmt.Errorf("failed to create local storage: %w", err)
			}
			s.storage = local
		}

		return nil
	}
}

func WithDetector() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be initialized before detector")
		}

		detector, err := roboflow.New(roboflow.Config{
			APIURL:              s.cfg.Roboflow.APIURL,
			APIKey:              s.cfg.Roboflow.APIKey,
			ModelID:             s.cfg.Roboflow.ModelID,
			ConfidenceThreshold: s.cfg.Roboflow.ConfidenceThreshold,
			OverlapThreshold:    s.cfg.Roboflow.OverlapThreshold,
			Timeout:             s.cfg.Roboflow.Timeout,
		}, s.validator)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		s.detector = detector
		return nil
	}
}

// WithReportGenerator picks the LLM provider. A missing API key is not an
// error: the service falls back to the canned report.
func WithReportGenerator() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be initialized before report generator")
		}

		var (
			client reportClient
			err    error
		)

		switch s.cfg.Report.Provider {
		case "openai":
			if s.cfg.Report.OpenAIAPIKey == "" {
				s.log.Warn("OPENAI_API_KEY not set, using mock reports")
				return nil
			}
			client, err = openai.NewChatGPT(s.cfg.Report.OpenAIAPIKey, s.cfg.Report.OpenAIModel)
		default:
			if s.cfg.Report.GeminiAPIKey == "" {
				s.log.Warn("GEMINI_API_KEY not set, using mock reports")
				return nil
			}
			client, err = gemini.NewGeminiClient(s.cfg.Report.GeminiAPIKey, s.cfg.Report.GeminiModel)
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create %s client: %v", s.cfg.Report.Provider, err)
			}
			return fmt.Errorf("failed to create report generator: %w", err)
		}

		s.reporter = client
		return nil
	}
}

func WithDICOMConverter() ServerOption {
	return func(s *Server) error {
		s.converter = dicom.NewConverter()
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}

		rc := middleware.RateConfig{}
		if s.cfg != nil {
			rc.Rate = s.cfg.RateLimit
			rc.Burst = s.cfg.RateBurst
		}
		s.middleware = middleware.New(s.log, rc)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		var maxSize int64
		if s.cfg != nil {
			maxSize = s.cfg.MaxUploadMB * 1024 * 1024
		}
		s.utils = utils.New(maxSize)
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	policy, err := nms.ParseDegeneratePolicy(s.cfg.NMS.DegeneratePolicy)
	if err != nil {
		return err
	}

	var scanRepo scanRepository.Repository
	if s.db != nil {
		scanRepo = scanRepository.New(s.db, s.log)
	}

	var reporter scanService.ReportGenerator
	if s.reporter != nil {
		reporter = s.reporter
	}

	if s.converter == nil {
		s.converter = dicom.NewConverter()
	}

	// Scan Domain
	scanServices := scanService.NewScanService(s.log, scanRepo, s.detector, reporter, s.converter, s.storage, s.redisCache, s.utils, scanService.Config{
		OverlapThreshold: s.cfg.Roboflow.OverlapThreshold,
		ClassAware:       s.cfg.NMS.ClassAware,
		DegeneratePolicy: policy,
		UploadDir:        s.cfg.Storage.UploadDir,
		MaxImageSide:     s.cfg.MaxImageSide,
		CacheTTL:         s.cfg.CacheTTL,
	})
	scanHandlers := scanHandler.New(s.log, s.validator, s.middleware, scanServices, s.utils, s.cfg.PredictTimeout)

	s.handlers = append(s.handlers, scanHandlers)
	return nil
}

// Mount applies middleware and routes. Run calls it; tests call it directly
// and drive the app with fiber's Test helper.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	if s.cfg.Storage.Driver != "s3" {
		s.engine.Static("/static", s.cfg.Storage.StaticDir)
	}

	s.setupHealthCheck()

	router := s.engine.Group("/api")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port)); err != nil {
		return err
	}

	return nil
}

// StartCleaner removes stale uploads and converted images until ctx ends.
func (s *Server) StartCleaner(ctx context.Context) {
	dirs := []string{s.cfg.Storage.UploadDir}
	if s.cfg.Storage.Driver != "s3" {
		dirs = append(dirs, s.cfg.Storage.StaticDir)
	}

	cleaner := storage.NewCleaner(s.log, s.cfg.Storage.MaxFileAge, s.cfg.Storage.CleanupInterval, dirs...)
	go cleaner.Run(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if s.reporter != nil {
		if err := s.reporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("report generator: %w", err))
		}
	}
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
