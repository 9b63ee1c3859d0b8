package scanHandler

import (
	"DentoScan/internal/api/scan"
	"DentoScan/internal/entity"
	"DentoScan/internal/middleware"
	"DentoScan/pkg/utils"
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type fakeService struct {
	analyzeErr error
	upload     scan.Upload
	lastLimit  int
}

func (f *fakeService) Analyze(ctx context.Context, upload scan.Upload) (*scan.PredictResponse, error) {
	f.upload = upload
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &scan.PredictResponse{
		ScanID:          "01HZX",
		Predictions:     []entity.Detection{{Class: "caries", Confidence: 0.95, X: 50, Y: 50, Width: 20, Height: 20}},
		PngURL:          "/static/01HZX.png",
		Report:          "Findings: caries.",
		ImageDimensions: &entity.ImageDimensions{Width: 40, Height: 30},
	}, nil
}

func (f *fakeService) GetScan(ctx context.Context, id string) (*scan.ScanResponse, error) {
	if id != "01HZX" {
		return nil, scan.ErrScanNotFound
	}
	return &scan.ScanResponse{ID: id, Predictions: []entity.Detection{}}, nil
}

func (f *fakeService) ListScans(ctx context.Context, limit int) (*scan.ScanListResponse, error) {
	f.lastLimit = limit
	return &scan.ScanListResponse{Scans: []scan.ScanResponse{}}, nil
}

func newTestApp(svc *fakeService, maxUpload int64) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := middleware.New(logger, middleware.RateConfig{})
	h := New(logger, validator.New(), m, svc, utils.New(maxUpload), time.Second)

	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(m.NewRequestIDMiddleware())
	h.Start(app.Group("/api"))

	return app
}

func multipartRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/predict", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := jsoniter.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(&fakeService{}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var got scan.HealthResponse
	decode(t, resp, &got)
	if resp.StatusCode != fiber.StatusOK || got.Status != "healthy" {
		t.Errorf("unexpected health response %d %+v", resp.StatusCode, got)
	}
}

func TestPredict(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, 0)

	resp, err := app.Test(multipartRequest(t, "file", "xray.dcm", []byte("DICM")), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var got scan.PredictResponse
	decode(t, resp, &got)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if svc.upload.FileName != "xray.dcm" || string(svc.upload.Data) != "DICM" {
		t.Errorf("service got upload %+v", svc.upload)
	}
	if got.PngURL != "/static/01HZX.png" || len(got.Predictions) != 1 || got.ImageDimensions.Width != 40 {
		t.Errorf("unexpected body %+v", got)
	}
	if resp.Header.Get(middleware.RequestIDKey) == "" {
		t.Errorf("missing request id header")
	}
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name       string
		maxUpload  int64
		serviceErr error
		field      string
		content    []byte
		wantStatus int
		wantDetail string
	}{
		{
			name:       "missing file field",
			field:      "image",
			content:    []byte("x"),
			wantStatus: fiber.StatusBadRequest,
			wantDetail: "No file uploaded",
		},
		{
			name:       "file too large",
			maxUpload:  2,
			field:      "file",
			content:    []byte("too big"),
			wantStatus: fiber.StatusBadRequest,
			wantDetail: scan.ErrFileTooLarge.Error(),
		},
		{
			name:       "invalid file type",
			serviceErr: scan.ErrInvalidFileType,
			field:      "file",
			content:    []byte("x"),
			wantStatus: fiber.StatusBadRequest,
			wantDetail: "Invalid file type. Only .dcm, .rvg, .png, .jpg, or .jpeg files are allowed.",
		},
		{
			name:       "inference failure",
			serviceErr: scan.ErrInferenceFailed,
			field:      "file",
			content:    []byte("x"),
			wantStatus: fiber.StatusInternalServerError,
			wantDetail: scan.ErrInferenceFailed.Error(),
		},
		{
			name:       "unmapped error",
			serviceErr: io.ErrUnexpectedEOF,
			field:      "file",
			content:    []byte("x"),
			wantStatus: fiber.StatusInternalServerError,
			wantDetail: "An unexpected error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeService{analyzeErr: tt.serviceErr}, tt.maxUpload)

			resp, err := app.Test(multipartRequest(t, tt.field, "xray.dcm", tt.content), -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}

			var got struct {
				Detail string `json:"detail"`
			}
			decode(t, resp, &got)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", got.Detail, tt.wantDetail)
			}
		})
	}
}

func TestScans(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/scans?limit=5", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || svc.lastLimit != 5 {
		t.Errorf("list: status %d limit %d", resp.StatusCode, svc.lastLimit)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/scans?limit=500", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected limit above 100 to be rejected, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/scans/01HZX", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("get: status %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/scans/nope", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var got struct {
		Detail string `json:"detail"`
	}
	decode(t, resp, &got)
	if resp.StatusCode != fiber.StatusNotFound || got.Detail != "Scan not found" {
		t.Errorf("missing scan: %d %q", resp.StatusCode, got.Detail)
	}
}
