package scanService

import (
	"DentoScan/internal/api/scan"
	scanRepository "DentoScan/internal/api/scan/repository"
	"DentoScan/internal/entity"
	"DentoScan/pkg/redis"
	"DentoScan/pkg/utils"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type fakeDetector struct {
	detections []entity.Detection
	err        error
	calls      int
}

func (f *fakeDetector) Detect(ctx context.Context, image []byte, fileName string) ([]entity.Detection, error) {
	f.calls++
	return f.detections, f.err
}

type fakeReporter struct {
	text   string
	err    error
	prompt string
}

func (f *fakeReporter) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type fakeConverter struct {
	img   image.Image
	err   error
	calls int
}

func (f *fakeConverter) ToImage(r io.Reader, size int64) (image.Image, error) {
	f.calls++
	return f.img, f.err
}

type fakeStorage struct {
	saved map[string][]byte
}

func (f *fakeStorage) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[name] = data
	return "/static/" + name, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) Close() error { return nil }

type fakeStore struct {
	scans     []entity.Scan
	createErr error
	lastLimit int
}

func (f *fakeStore) CreateScan(c context.Context, s entity.Scan) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.scans = append(f.scans, s)
	return nil
}

func (f *fakeStore) GetScanByID(c context.Context, id string) (entity.Scan, error) {
	for _, s := range f.scans {
		if s.ID == id {
			return s, nil
		}
	}
	return entity.Scan{}, scan.ErrScanNotFound
}

func (f *fakeStore) ListScans(c context.Context, limit int) ([]entity.Scan, error) {
	f.lastLimit = limit
	if limit < len(f.scans) {
		return f.scans[:limit], nil
	}
	return f.scans, nil
}

type fakeRepo struct {
	store *fakeStore
}

func (f *fakeRepo) NewClient(tx bool) (scanRepository.Client, error) {
	return scanRepository.Client{
		Scan:     f.store,
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type fixture struct {
	svc       IScanService
	detector  *fakeDetector
	reporter  *fakeReporter
	converter *fakeConverter
	storage   *fakeStorage
	cache     *fakeCache
	store     *fakeStore
	uploadDir string
}

func newFixture(t *testing.T, reporter ReportGenerator) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		detector:  &fakeDetector{},
		converter: &fakeConverter{img: testImage(40, 30)},
		storage:   &fakeStorage{},
		cache:     &fakeCache{},
		store:     &fakeStore{},
		uploadDir: t.TempDir(),
	}
	if r, ok := reporter.(*fakeReporter); ok {
		f.reporter = r
	}

	f.svc = NewScanService(log, &fakeRepo{store: f.store}, f.detector, reporter, f.converter,
		f.storage, f.cache, utils.New(0), Config{
			OverlapThreshold: 0.5,
			UploadDir:        f.uploadDir,
			MaxImageSide:     2048,
			CacheTTL:         time.Hour,
		})

	return f
}

func testImage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func cavityDetections() []entity.Detection {
	return []entity.Detection{
		{Class: "caries", Confidence: 0.80, X: 52, Y: 52, Width: 20, Height: 20},
		{Class: "caries", Confidence: 0.95, X: 50, Y: 50, Width: 20, Height: 20},
		{Class: "crown", Confidence: 0.60, X: 200, Y: 200, Width: 10, Height: 10},
	}
}

func TestAnalyzeRaster(t *testing.T) {
	f := newFixture(t, &fakeReporter{text: "Caries on the upper left molar."})
	f.detector.detections = cavityDetections()

	resp, err := f.svc.Analyze(context.Background(), scan.Upload{
		FileName: "xray.PNG",
		Data:     pngBytes(t, testImage(40, 30)),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if len(resp.Predictions) != 2 {
		t.Fatalf("expected 2 predictions after suppression, got %d", len(resp.Predictions))
	}
	if resp.Predictions[0].Confidence != 0.95 || resp.Predictions[1].Class != "crown" {
		t.Errorf("unexpected predictions: %+v", resp.Predictions)
	}
	if resp.Report != "Caries on the upper left molar." {
		t.Errorf("unexpected report %q", resp.Report)
	}
	if resp.ImageDimensions == nil || resp.ImageDimensions.Width != 40 || resp.ImageDimensions.Height != 30 {
		t.Errorf("unexpected dimensions %+v", resp.ImageDimensions)
	}
	if !strings.HasPrefix(resp.PngURL, "/static/") || !strings.HasSuffix(resp.PngURL, ".png") {
		t.Errorf("unexpected png url %q", resp.PngURL)
	}
	if resp.ScanID == "" || resp.Cached {
		t.Errorf("expected fresh response with scan id, got %+v", resp)
	}
	if f.converter.calls != 0 {
		t.Errorf("raster upload should not go through the DICOM converter")
	}
	if len(f.store.scans) != 1 || f.store.scans[0].ID != resp.ScanID {
		t.Errorf("scan not persisted: %+v", f.store.scans)
	}

	entries, err := os.ReadDir(f.uploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp upload not removed, found %d entries", len(entries))
	}
}

func TestAnalyzeDICOM(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.svc.Analyze(context.Background(), scan.Upload{
		FileName: "patient.rvg",
		Data:     []byte("DICM-not-really"),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if f.converter.calls != 1 {
		t.Errorf("expected converter to be called once, got %d", f.converter.calls)
	}
	if resp.Predictions == nil || len(resp.Predictions) != 0 {
		t.Errorf("expected empty non-nil predictions, got %#v", resp.Predictions)
	}
	if !strings.HasPrefix(resp.Report, "Mock Diagnostic Report:") {
		t.Errorf("expected mock report without a generator, got %q", resp.Report)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("invalid extension", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "notes.txt", Data: []byte("x")})
		if !errors.Is(err, scan.ErrInvalidFileType) {
			t.Fatalf("expected ErrInvalidFileType, got %v", err)
		}
		if f.detector.calls != 0 {
			t.Errorf("detector should not be called")
		}
	})

	t.Run("undecodable raster", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "xray.jpg", Data: []byte("garbage")})
		if !errors.Is(err, scan.ErrConversionFailed) {
			t.Fatalf("expected ErrConversionFailed, got %v", err)
		}
	})

	t.Run("converter failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.converter.err = errors.New("no pixel data")
		_, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "a.dcm", Data: []byte("x")})
		if !errors.Is(err, scan.ErrConversionFailed) {
			t.Fatalf("expected ErrConversionFailed, got %v", err)
		}
	})

	t.Run("detector failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.detector.err = errors.New("upstream 502")
		_, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "a.dcm", Data: []byte("x")})
		if !errors.Is(err, scan.ErrInferenceFailed) {
			t.Fatalf("expected ErrInferenceFailed, got %v", err)
		}
	})

	t.Run("invalid detector output", func(t *testing.T) {
		f := newFixture(t, nil)
		f.detector.detections = []entity.Detection{{Class: "caries", Confidence: 1.5, Width: 1, Height: 1}}
		_, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "a.dcm", Data: []byte("x")})
		if !errors.Is(err, scan.ErrInferenceFailed) {
			t.Fatalf("expected ErrInferenceFailed, got %v", err)
		}
	})
}

func TestAnalyzeCache(t *testing.T) {
	f := newFixture(t, nil)
	f.detector.detections = cavityDetections()
	upload := scan.Upload{FileName: "a.dcm", Data: []byte("same bytes")}

	first, err := f.svc.Analyze(context.Background(), upload)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := f.svc.Analyze(context.Background(), upload)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if f.detector.calls != 1 {
		t.Errorf("expected detector to be called once, got %d", f.detector.calls)
	}
	if !second.Cached || second.ScanID != first.ScanID || len(second.Predictions) != len(first.Predictions) {
		t.Errorf("cached response mismatch: first %+v second %+v", first, second)
	}
}

func TestAnalyzePersistenceBestEffort(t *testing.T) {
	f := newFixture(t, nil)
	f.store.createErr = errors.New("connection refused")

	if _, err := f.svc.Analyze(context.Background(), scan.Upload{FileName: "a.dcm", Data: []byte("x")}); err != nil {
		t.Fatalf("persistence failure should not fail the analysis: %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, nil)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.store.scans = []entity.Scan{
		{ID: "01A", FileName: "a.dcm", CreatedAt: created},
		{ID: "01B", FileName: "b.png", CreatedAt: created},
	}

	list, err := f.svc.ListScans(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if f.store.lastLimit != defaultListLimit {
		t.Errorf("expected default limit %d, got %d", defaultListLimit, f.store.lastLimit)
	}
	if list.Total != 2 || list.Scans[0].CreatedAt != "2024-05-01T10:00:00Z" {
		t.Errorf("unexpected list %+v", list)
	}
	if list.Scans[0].Predictions == nil {
		t.Errorf("predictions should serialize as an empty array")
	}

	got, err := f.svc.GetScan(context.Background(), "01B")
	if err != nil || got.FileName != "b.png" {
		t.Fatalf("GetScan = %+v, %v", got, err)
	}

	if _, err := f.svc.GetScan(context.Background(), "missing"); !errors.Is(err, scan.ErrScanNotFound) {
		t.Errorf("expected ErrScanNotFound, got %v", err)
	}
}
