package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"

	CameraSourceHTTP      = "http"
	CameraSourceDevice    = "device"
	CameraSourceDirectory = "directory"

	EmbedderDeepFace = "deepface"
	EmbedderMock     = "mock"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Storage
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	AutoMigrate  bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Camera
	CameraSource  string `envconfig:"CAMERA_SOURCE" default:"http"`
	CameraURL     string `envconfig:"CAMERA_URL" default:"http://192.0.0.4:8080/shot.jpg"`
	CameraURLFile string `envconfig:"CAMERA_URL_FILE"`
	CameraDevice  int    `envconfig:"CAMERA_DEVICE" default:"0"`
	CameraWidth   int    `envconfig:"CAMERA_WIDTH" default:"1280"`
	CameraHeight  int    `envconfig:"CAMERA_HEIGHT" default:"720"`
	CameraDir     string `envconfig:"CAMERA_DIR"`

	// Frame acquisition
	FrameTimeout        time.Duration `envconfig:"FRAME_TIMEOUT" default:"2500ms"`
	FramePollInterval   time.Duration `envconfig:"FRAME_POLL_INTERVAL" default:"40ms"`
	FrameMaxBackoff     time.Duration `envconfig:"FRAME_MAX_BACKOFF" default:"2s"`
	ReopenAfterFailures int           `envconfig:"REOPEN_AFTER_FAILURES" default:"30"`
	ReopenMaxRetries    int           `envconfig:"REOPEN_MAX_RETRIES" default:"5"`
	ReopenRetryDelay    time.Duration `envconfig:"REOPEN_RETRY_DELAY" default:"150ms"`
	ReopenMaxDelay      time.Duration `envconfig:"REOPEN_MAX_DELAY" default:"5s"`

	// Embedder
	Embedder         string        `envconfig:"EMBEDDER" default:"deepface"`
	DeepFaceURL      string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string        `envconfig:"DEEPFACE_MODEL" default:"Dlib"`
	DeepFaceDetector string        `envconfig:"DEEPFACE_DETECTOR" default:"dlib"`
	DeepFaceTimeout  time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"10s"`

	// Trilha de auditoria (LGPD) no log do serviço
	AuditLog bool `envconfig:"AUDIT_LOG" default:"true"`

	// Webhook (desligado com URL vazia)
	WebhookURL         string        `envconfig:"WEBHOOK_URL"`
	WebhookSecret      string        `envconfig:"WEBHOOK_SECRET"`
	WebhookEvents      string        `envconfig:"WEBHOOK_EVENTS" default:"attendance.recorded"`
	WebhookTimeout     time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	WebhookMaxAttempts int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`

	Recognition
}

// Recognition holds the tunables of the identification and enrollment pipeline.
type Recognition struct {
	DistThreshold         float64 `envconfig:"DIST_THRESHOLD" default:"0.45"`
	Margin                float64 `envconfig:"MARGIN" default:"0.03"`
	MinFaceSize           int     `envconfig:"MIN_FACE_SIZE" default:"80"`
	MinSharpness          float64 `envconfig:"MIN_SHARPNESS" default:"120"`
	CooldownSecs          int     `envconfig:"COOLDOWN_SECS" default:"120"`
	EnrollShots           int     `envconfig:"ENROLL_SHOTS" default:"5"`
	EnrollTimeoutSecs     int     `envconfig:"ENROLL_TIMEOUT_SECS" default:"8"`
	RecognitionIntervalMS int     `envconfig:"RECOGNITION_INTERVAL_MS" default:"250"`
	DownscaleFactor       float64 `envconfig:"DOWNSCALE_FACTOR" default:"0.5"`
	Upsample              int     `envconfig:"UPSAMPLE" default:"0"`
	CanonicalSize         int     `envconfig:"CANONICAL_SIZE" default:"256"`
	GoodSharpnessFactor   float64 `envconfig:"ENROLL_GOOD_SHARPNESS_FACTOR" default:"2.0"`
	GoodSizeFactor        float64 `envconfig:"ENROLL_GOOD_SIZE_FACTOR" default:"1.2"`
	SeedCooldown          bool    `envconfig:"COOLDOWN_SEED_FROM_JOURNAL" default:"true"`
}

func (r Recognition) Cooldown() time.Duration {
	return time.Duration(r.CooldownSecs) * time.Second
}

func (r Recognition) RecognitionInterval() time.Duration {
	return time.Duration(r.RecognitionIntervalMS) * time.Millisecond
}

func (r Recognition) EnrollTimeout() time.Duration {
	return time.Duration(r.EnrollTimeoutSecs) * time.Second
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.CameraURLFile != "" {
		camURL, err := readCameraURL(cfg.CameraURLFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if camURL != "" {
			cfg.CameraURL = camURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// readCameraURL returns the first line of path. A missing file is not an error.
func readCameraURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read camera url file: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreBackendFile:
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.CameraSource {
	case CameraSourceHTTP, CameraSourceDevice:
	case CameraSourceDirectory:
		if c.CameraDir == "" {
			errs = append(errs, errors.New("CAMERA_DIR is required for the directory source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CAMERA_SOURCE %q", c.CameraSource))
	}

	switch c.Embedder {
	case EmbedderDeepFace, EmbedderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDER %q", c.Embedder))
	}

	r := c.Recognition
	if r.DistThreshold <= 0 {
		errs = append(errs, errors.New("DIST_THRESHOLD must be positive"))
	}
	if r.Margin < 0 {
		errs = append(errs, errors.New("MARGIN must not be negative"))
	}
	if r.MinFaceSize <= 0 {
		errs = append(errs, errors.New("MIN_FACE_SIZE must be positive"))
	}
	if r.MinSharpness < 0 {
		errs = append(errs, errors.New("MIN_SHARPNESS must not be negative"))
	}
	if r.CooldownSecs < 0 {
		errs = append(errs, errors.New("COOLDOWN_SECS must not be negative"))
	}
	if r.EnrollShots <= 0 {
		errs = append(errs, errors.New("ENROLL_SHOTS must be positive"))
	}
	if r.EnrollTimeoutSecs <= 0 {
		errs = append(errs, errors.New("ENROLL_TIMEOUT_SECS must be positive"))
	}
	if r.RecognitionIntervalMS < 0 {
		errs = append(errs, errors.New("RECOGNITION_INTERVAL_MS must not be negative"))
	}
	if r.DownscaleFactor <= 0 || r.DownscaleFactor > 1 {
		errs = append(errs, errors.New("DOWNSCALE_FACTOR must be in (0, 1]"))
	}
	if r.Upsample < 0 {
		errs = append(errs, errors.New("UPSAMPLE must not be negative"))
	}
	if r.CanonicalSize <= 0 {
		errs = append(errs, errors.New("CANONICAL_SIZE must be positive"))
	}
	if c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("WEBHOOK_URL %q must be an absolute http(s) URL", c.WebhookURL))
		}
		if c.WebhookMaxAttempts <= 0 {
			errs = append(errs, errors.New("WEBHOOK_MAX_ATTEMPTS must be positive"))
		}
	}
	if c.FramePollInterval <= 0 {
		errs = append(errs, errors.New("FRAME_POLL_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
