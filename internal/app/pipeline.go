package app

import (
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

func AcquirerConfig(cfg *config.Config) frame.AcquirerConfig {
	c := frame.DefaultAcquirerConfig()
	c.FetchTimeout = cfg.FrameTimeout
	c.Reconnect = frame.ReconnectConfig{
		AfterFailures: cfg.ReopenAfterFailures,
		MaxRetries:    cfg.ReopenMaxRetries,
		RetryDelay:    cfg.ReopenRetryDelay,
		MaxRetryDelay: cfg.ReopenMaxDelay,
	}
	return c
}

func CaptureLoopConfig(cfg *config.Config) service.CaptureLoopConfig {
	c := service.DefaultCaptureLoopConfig()
	c.PollInterval = cfg.FramePollInterval
	c.MaxBackoff = cfg.FrameMaxBackoff
	c.RecognitionInterval = cfg.RecognitionInterval()
	c.DownscaleFactor = cfg.DownscaleFactor
	c.Upsample = cfg.Upsample
	return c
}

func EnrollmentConfig(cfg *config.Config) service.EnrollmentConfig {
	return service.EnrollmentConfig{
		Shots:               cfg.EnrollShots,
		Timeout:             cfg.EnrollTimeout(),
		CanonicalSize:       cfg.CanonicalSize,
		GoodSharpnessFactor: cfg.GoodSharpnessFactor,
		GoodSizeFactor:      cfg.GoodSizeFactor,
		DownscaleFactor:     cfg.DownscaleFactor,
		Upsample:            cfg.Upsample,
	}
}
