package scanService

import (
	"DentoScan/internal/api/scan"
	scanRepository "DentoScan/internal/api/scan/repository"
	"DentoScan/pkg/dicom"
	"DentoScan/pkg/nms"
	"DentoScan/pkg/redis"
	"DentoScan/pkg/roboflow"
	"DentoScan/pkg/storage"
	"DentoScan/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type IScanService interface {
	Analyze(ctx context.Context, upload scan.Upload) (*scan.PredictResponse, error)
	GetScan(ctx context.Context, id string) (*scan.ScanResponse, error)
	ListScans(ctx context.Context, limit int) (*scan.ScanListResponse, error)
}

// ReportGenerator turns a prompt into free text. Both the Gemini and OpenAI
// clients satisfy it.
type ReportGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	OverlapThreshold float64
	ClassAware       bool
	DegeneratePolicy nms.DegeneratePolicy
	UploadDir        string
	MaxImageSide     int
	CacheTTL         time.Duration
}

type scanService struct {
	log        *logrus.Logger
	repo       scanRepository.Repository
	detector   roboflow.IDetector
	reporter   ReportGenerator
	converter  dicom.IConverter
	storage    storage.IStorage
	cache      redis.IRedis
	utils      utils.IUtils
	cfg        Config
	nmsOptions []nms.Option
}

// NewScanService wires the scan pipeline. reporter and cache may be nil: a
// nil reporter yields the canned report and a nil cache disables caching.
func NewScanService(
	log *logrus.Logger,
	repo scanRepository.Repository,
	detector roboflow.IDetector,
	reporter ReportGenerator,
	converter dicom.IConverter,
	storage storage.IStorage,
	cache redis.IRedis,
	utils utils.IUtils,
	cfg Config,
) IScanService {
	opts := []nms.Option{nms.WithDegeneratePolicy(cfg.DegeneratePolicy)}
	if cfg.ClassAware {
		opts = append(opts, nms.WithClassAware())
	}

	return &scanService{
		log:        log,
		repo:       repo,
		detector:   detector,
		reporter:   reporter,
		converter:  converter,
		storage:    storage,
		cache:      cache,
		utils:      utils,
		cfg:        cfg,
		nmsOptions: opts,
	}
}
