package scanService

import (
	"DentoScan/internal/api/scan"
	"DentoScan/internal/entity"
	contextPkg "DentoScan/pkg/context"
	"DentoScan/pkg/imageutil"
	"DentoScan/pkg/nms"
	"DentoScan/pkg/redis"
	"bytes"
	"errors"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"image"
	"os"
	"path/filepath"
	"time"
)

const defaultListLimit = 20

func (s *scanService) Analyze(ctx context.Context, upload scan.Upload) (*scan.PredictResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	ext := s.utils.FileExtension(upload.FileName)
	fileType, ok := scan.AllowedExtensions[ext]
	if !ok {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"file_name":  upload.FileName,
		}).Warn("Rejected upload with unsupported extension")
		return nil, scan.ErrInvalidFileType
	}

	if len(upload.Data) == 0 {
		return nil, scan.ErrMissingFile
	}

	cacheKey := "scan:" + s.utils.SHA256Hex(upload.Data)
	if cached := s.cachedResponse(ctx, cacheKey); cached != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    cached.ScanID,
		}).Info("Serving scan from cache")
		return cached, nil
	}

	scanID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, scan.ErrInternalServerError
	}

	tempPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", scanID, filepath.Base(upload.FileName)))
	if err := os.WriteFile(tempPath, upload.Data, 0o600); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       tempPath,
			"error":      err.Error(),
		}).Error("Failed to write upload to temp dir")
		return nil, fmt.Errorf("%w: %v", scan.ErrSaveFailed, err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"path":       tempPath,
				"error":      err.Error(),
			}).Warn("Failed to remove temp upload")
		}
	}()

	img, err := s.loadImage(tempPath, fileType)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"file_type":  fileType,
			"error":      err.Error(),
		}).Error("Failed to convert upload")
		return nil, fmt.Errorf("%w: %v", scan.ErrConversionFailed, err)
	}
	img = imageutil.Fit(img, s.cfg.MaxImageSide)

	pngData, err := imageutil.EncodePNG(img)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to encode PNG")
		return nil, fmt.Errorf("%w: %v", scan.ErrConversionFailed, err)
	}

	pngName := scanID + ".png"
	pngURL, err := s.storage.Save(ctx, pngName, "image/png", pngData)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to store converted image")
		return nil, fmt.Errorf("%w: %v", scan.ErrSaveFailed, err)
	}

	raw, err := s.detector.Detect(ctx, pngData, pngName)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Error during inference")
		return nil, fmt.Errorf("%w: %v", scan.ErrInferenceFailed, err)
	}

	predictions, err := nms.Suppress(raw, s.cfg.OverlapThreshold, s.nmsOptions...)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"raw_count":  len(raw),
			"error":      err.Error(),
		}).Error("Detector returned predictions that could not be filtered")
		return nil, fmt.Errorf("%w: %v", scan.ErrInferenceFailed, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"scan_id":    scanID,
		"raw_count":  len(raw),
		"kept_count": len(predictions),
		"threshold":  s.cfg.OverlapThreshold,
	}).Info("Applied non-maximum suppression")

	report := s.generateReport(ctx, predictions)
	dims := imageutil.Dimensions(img)

	s.saveScan(ctx, entity.Scan{
		ID:          scanID,
		FileName:    upload.FileName,
		ImageURL:    pngURL,
		Dimensions:  dims,
		Predictions: predictions,
		Report:      report,
		CreatedAt:   time.Now(),
	})

	resp := &scan.PredictResponse{
		ScanID:          scanID,
		Predictions:     predictions,
		PngURL:          pngURL,
		Report:          report,
		ImageDimensions: dims,
	}
	s.cacheResponse(ctx, cacheKey, resp)

	return resp, nil
}

func (s *scanService) loadImage(path string, fileType scan.FileType) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fileType == scan.FileTypeDICOM {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return s.converter.ToImage(f, info.Size())
	}

	return imageutil.Decode(f)
}

// saveScan records history on a best-effort basis; a database outage must
// not discard a finished analysis.
func (s *scanService) saveScan(ctx context.Context, record entity.Scan) {
	if s.repo == nil {
		return
	}

	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return
	}

	if err := repo.Scan.CreateScan(ctx, record); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    record.ID,
			"error":      err.Error(),
		}).Error("Failed to persist scan")
	}
}

func (s *scanService) cachedResponse(ctx context.Context, key string) *scan.PredictResponse {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"error":      err.Error(),
			}).Warn("Scan cache unavailable")
		}
		return nil
	}

	var resp scan.PredictResponse
	if err := jsoniter.NewDecoder(bytes.NewReader(data)).Decode(&resp); err != nil {
		return nil
	}
	resp.Cached = true

	return &resp
}

func (s *scanService) cacheResponse(ctx context.Context, key string, resp *scan.PredictResponse) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}

	data, err := jsoniter.Marshal(resp)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to cache scan response")
	}
}

func (s *scanService) GetScan(ctx context.Context, id string) (*scan.ScanResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.repo == nil {
		return nil, scan.ErrScanNotFound
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, err
	}

	record, err := repo.Scan.GetScanByID(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := toScanResponse(record)
	return &resp, nil
}

func (s *scanService) ListScans(ctx context.Context, limit int) (*scan.ScanListResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if limit <= 0 {
		limit = defaultListLimit
	}

	if s.repo == nil {
		return &scan.ScanListResponse{Scans: []scan.ScanResponse{}}, nil
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, err
	}

	records, err := repo.Scan.ListScans(ctx, limit)
	if err != nil {
		return nil, err
	}

	scans := make([]scan.ScanResponse, 0, len(records))
	for _, record := range records {
		scans = append(scans, toScanResponse(record))
	}

	return &scan.ScanListResponse{
		Scans: scans,
		Total: len(scans),
	}, nil
}

func toScanResponse(record entity.Scan) scan.ScanResponse {
	predictions := record.Predictions
	if predictions == nil {
		predictions = []entity.Detection{}
	}

	return scan.ScanResponse{
		ID:              record.ID,
		FileName:        record.FileName,
		PngURL:          record.ImageURL,
		ImageDimensions: record.Dimensions,
		Predictions:     predictions,
		Report:          record.Report,
		CreatedAt:       record.CreatedAt.Format(time.RFC3339),
	}
}
