package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	Port        string `validate:"required,numeric"`
	Env         string
	CORSOrigins string

	Roboflow RoboflowConfig
	NMS      NMSConfig
	Report   ReportConfig
	Storage  StorageConfig

	MaxUploadMB    int64         `validate:"gt=0"`
	MaxImageSide   int           `validate:"gte=0"`
	CacheTTL       time.Duration `validate:"gte=0"`
	PredictTimeout time.Duration `validate:"gt=0"`
	RateLimit      float64       `validate:"gte=0"`
	RateBurst      int           `validate:"gte=0"`

	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
}

type RoboflowConfig struct {
	APIKey              string  `validate:"required"`
	APIURL              string  `validate:"required,url"`
	ModelID             string  `validate:"required"`
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	OverlapThreshold    float64 `validate:"gte=0,lte=1"`
	Timeout             time.Duration
}

type NMSConfig struct {
	ClassAware       bool
	DegeneratePolicy string `validate:"omitempty,oneof=clamp skip reject"`
}

type ReportConfig struct {
	Provider     string `validate:"oneof=gemini openai"`
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
}

type StorageConfig struct {
	Driver          string        `validate:"oneof=local s3"`
	StaticDir       string        `validate:"required"`
	UploadDir       string        `validate:"required"`
	MaxFileAge      time.Duration `validate:"gt=0"`
	CleanupInterval time.Duration `validate:"gt=0"`
}

// DatabaseConfig is optional; an empty Host disables scan history.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig is optional; an empty Address disables the response cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	KeyPrefix       string
}

// LoadAppConfig reads the process environment. Call godotenv.Load first if
// a .env file should be honoured.
func LoadAppConfig(validate *validator.Validate) (*AppConfig, error) {
	return loadAppConfig(os.Getenv, validate)
}

func loadAppConfig(getenv func(string) string, validate *validator.Validate) (*AppConfig, error) {
	env := envReader{getenv: getenv}

	maxAgeHours := env.getInt("MAX_FILE_AGE_HOURS", 24)

	cfg := &AppConfig{
		Port:        env.getString("APP_PORT", "8000"),
		Env:         env.getString("APP_ENV", "development"),
		CORSOrigins: env.getString("CORS_ORIGINS", "http://localhost:5173,http://localhost:5174"),

		Roboflow: RoboflowConfig{
			APIKey:              env.getString("ROBOFLOW_API_KEY", ""),
			APIURL:              env.getString("ROBOFLOW_API_URL", "https://detect.roboflow.com"),
			ModelID:             env.getString("ROBOFLOW_MODEL_ID", "adr/6"),
			ConfidenceThreshold: env.getFloat("ROBOFLOW_CONFIDENCE_THRESHOLD", 0.3),
			OverlapThreshold:    env.getFloat("ROBOFLOW_OVERLAP_THRESHOLD", 0.5),
			Timeout:             env.getDuration("ROBOFLOW_TIMEOUT", 30*time.Second),
		},
		NMS: NMSConfig{
			ClassAware:       env.getBool("NMS_CLASS_AWARE", false),
			DegeneratePolicy: strings.ToLower(env.getString("NMS_DEGENERATE_POLICY", "clamp")),
		},
		Report: ReportConfig{
			Provider:     strings.ToLower(env.getString("REPORT_PROVIDER", "gemini")),
			GeminiAPIKey: env.getString("GEMINI_API_KEY", ""),
			GeminiModel:  env.getString("GEMINI_MODEL_NAME", "gemini-2.0-flash"),
			OpenAIAPIKey: env.getString("OPENAI_API_KEY", ""),
			OpenAIModel:  env.getString("OPENAI_CHAT_MODEL", ""),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(env.getString("STORAGE_DRIVER", "local")),
			StaticDir:       env.getString("STATIC_DIR", "static"),
			UploadDir:       env.getString("UPLOAD_DIR", "temp"),
			MaxFileAge:      time.Duration(maxAgeHours) * time.Hour,
			CleanupInterval: env.getDuration("CLEANUP_INTERVAL", time.Hour),
		},

		MaxUploadMB:    int64(env.getInt("MAX_UPLOAD_MB", 50)),
		MaxImageSide:   env.getInt("MAX_IMAGE_SIDE", 2048),
		CacheTTL:       env.getDuration("CACHE_TTL", 24*time.Hour),
		PredictTimeout: env.getDuration("PREDICT_TIMEOUT", 60*time.Second),
		RateLimit:      env.getFloat("RATE_LIMIT_RPS", 2),
		RateBurst:      env.getInt("RATE_LIMIT_BURST", 10),

		Database: DatabaseConfig{
			Host:     env.getString("DB_HOST", ""),
			Port:     env.getString("DB_PORT", "5432"),
			User:     env.getString("DB_USER", "postgres"),
			Password: env.getString("DB_PASSWORD", ""),
			Name:     env.getString("DB_NAME", "dentoscan"),
			SSLMode:  env.getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Address:  env.getString("REDIS_ADDRESS", ""),
			Password: env.getString("REDIS_PASSWORD", ""),
			DB:       env.getInt("REDIS_DB", 0),
			Prefix:   env.getString("REDIS_PREFIX", "dentoscan:"),
		},
		AWS: AWSConfig{
			Region:          env.getString("AWS_REGION", ""),
			AccessKeyID:     env.getString("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.getString("AWS_SECRET_ACCESS_KEY", ""),
			BucketName:      env.getString("AWS_BUCKET_NAME", ""),
			KeyPrefix:       env.getString("AWS_KEY_PREFIX", "scans/"),
		},
	}

	if len(env.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(env.errs, "; "))
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Storage.Driver == "s3" && cfg.AWS.BucketName == "" {
		return nil, fmt.Errorf("invalid configuration: AWS_BUCKET_NAME is required when STORAGE_DRIVER=s3")
	}

	return cfg, nil
}

func (c *AppConfig) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// envReader collects parse errors instead of failing on the first one, so
// a misconfigured deployment reports everything at once.
type envReader struct {
	getenv func(string) string
	errs   []string
}

func (e *envReader) getString(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func (e *envReader) getBool(key string, def bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
