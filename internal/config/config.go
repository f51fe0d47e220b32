package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Platform connection
	InstanceURL  string
	ClientID     string
	ClientSecret string
	AccessToken  string

	// Posting
	CharacterLimit int
	Language       string
	RenderFormat   string

	// Segmenting
	EstimateFactor float64

	// Transport
	HTTPTimeout time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel slog.Level

	// Parse failures collected by Load, reported by Validate.
	errs []error
}

func Load() Config {
	cfg := Config{
		InstanceURL:  strings.TrimRight(env("INSTANCE_URL"), "/"),
		ClientID:     env("CLIENT_ID"),
		ClientSecret: env("CLIENT_SECRET"),
		AccessToken:  env("ACCESS_TOKEN"),

		Language:     envOr("POST_LANGUAGE", "en"),
		RenderFormat: strings.ToLower(envOr("RENDER_FORMAT", "plain")),

		HTTPTimeout: 30 * time.Second,

		PDFFallbackPdftotext: true,
	}

	if v := env("CHARACTER_LIMIT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			cfg.errs = append(cfg.errs, fmt.Errorf("CHARACTER_LIMIT is not an integer: %q", v))
		}
		cfg.CharacterLimit = n
	}

	cfg.EstimateFactor = envFloat(&cfg, "ESTIMATE_FACTOR", 1.5)
	cfg.HTTPTimeout = envDuration(&cfg, "HTTP_TIMEOUT", 30*time.Second)
	cfg.PDFFallbackPdftotext = envBool(&cfg, "PDF_FALLBACK_PDFTOTEXT", true)
	cfg.LogLevel = envLevel(&cfg, "LOG_LEVEL", slog.LevelInfo)

	if cfg.EstimateFactor <= 0 {
		cfg.EstimateFactor = 1.5
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	return cfg
}

// ValidateSegmenting checks only what segmentation needs, so a dry run
// works without platform credentials.
func (c Config) ValidateSegmenting() error {
	if len(c.errs) > 0 {
		return errors.Join(c.errs...)
	}
	if c.CharacterLimit == 0 {
		return fmt.Errorf("CHARACTER_LIMIT is required")
	}
	if c.CharacterLimit < 0 {
		return fmt.Errorf("CHARACTER_LIMIT must be positive, got %d", c.CharacterLimit)
	}
	switch c.RenderFormat {
	case "plain", "html":
	default:
		return fmt.Errorf("RENDER_FORMAT must be plain or html, got %q", c.RenderFormat)
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.ValidateSegmenting(); err != nil {
		return err
	}
	if c.InstanceURL == "" {
		return fmt.Errorf("INSTANCE_URL is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("CLIENT_SECRET is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("ACCESS_TOKEN is required")
	}
	return nil
}

// EffectiveLimit is the per-post budget left once the content warning,
// which the platform counts against every post, is taken out.
func (c Config) EffectiveLimit(contentWarning string) (int, error) {
	limit := c.CharacterLimit - len([]rune(contentWarning))
	if limit <= 0 {
		return 0, fmt.Errorf("content warning (%d characters) leaves no room in a %d character post",
			len([]rune(contentWarning)), c.CharacterLimit)
	}
	return limit, nil
}

// env reads key, falling back to its lower-case spelling used by older
// .env files.
func env(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return os.Getenv(strings.ToLower(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(c *Config, key string, fallback float64) float64 {
	if v := env(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("%s is not a number: %q", key, v))
			return fallback
		}
		return f
	}
	return fallback
}

func envBool(c *Config, key string, fallback bool) bool {
	if v := env(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("%s is not a boolean: %q", key, v))
			return fallback
		}
		return b
	}
	return fallback
}

func envDuration(c *Config, key string, fallback time.Duration) time.Duration {
	if v := env(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("%s is not a duration: %q", key, v))
			return fallback
		}
		return d
	}
	return fallback
}

func envLevel(c *Config, key string, fallback slog.Level) slog.Level {
	if v := env(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err != nil {
			c.errs = append(c.errs, fmt.Errorf("%s is not a log level: %q", key, v))
			return fallback
		}
		return l
	}
	return fallback
}
