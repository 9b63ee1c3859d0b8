// Package roboflow calls a hosted object-detection model over HTTP.
package roboflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"DentoScan/internal/entity"
)

var (
	ErrMissingAPIKey   = errors.New("roboflow API key is required")
	ErrInvalidResponse = errors.New("invalid inference response")
)

type IDetector interface {
	Detect(ctx context.Context, image []byte, fileName string) ([]entity.Detection, error)
}

type Config struct {
	APIURL              string
	APIKey              string
	ModelID             string
	ConfidenceThreshold float64
	OverlapThreshold    float64
	Timeout             time.Duration
}

type inferenceResponse struct {
	Predictions []entity.Detection `json:"predictions" validate:"dive"`
	Image       *struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"image,omitempty"`
}

type client struct {
	cfg        Config
	httpClient *http.Client
	validator  *validator.Validate
}

func New(cfg Config, validate *validator.Validate) (IDetector, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://detect.roboflow.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if validate == nil {
		validate = validator.New()
	}

	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validator:  validate,
	}, nil
}

// Detect uploads image as multipart form data and returns the raw
// predictions. The hosted API takes its thresholds as integer percentages.
func (c *client) Detect(ctx context.Context, image []byte, fileName string) ([]entity.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if fileName == "" {
		fileName = "image.png"
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var result inferenceResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if err := c.validator.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if result.Predictions == nil {
		return []entity.Detection{}, nil
	}

	return result.Predictions, nil
}

func (c *client) endpoint() string {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("confidence", strconv.Itoa(percent(c.cfg.ConfidenceThreshold)))
	q.Set("overlap", strconv.Itoa(percent(c.cfg.OverlapThreshold)))

	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.cfg.APIURL, "/"), strings.Trim(c.cfg.ModelID, "/"), q.Encode())
}

// percent converts a [0,1] threshold to a whole percentage; the epsilon keeps
// 0.29 at 29 instead of 28.
func percent(v float64) int {
	return int(v*100 + 1e-9)
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
