package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-query-pipeline/internal/pipeline"
	"github.com/i474232898/weather-query-pipeline/internal/weather/providers"
)

// Provider names accepted by WEATHER_PROVIDER.
const (
	ProviderOpenWeather = "openweather"
	ProviderOpenMeteo   = "openmeteo"
)

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string `validate:"required,url"`
	OpenMeteoBaseURL   string `validate:"required,url"`
	GeocoderAPIKey     string

	// Provider selects the weather backend.
	Provider string `validate:"oneof=openweather openmeteo"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	// DebounceWindow is the quiet period before a query is resolved.
	DebounceWindow time.Duration `validate:"gte=0"`

	// Retry of 5xx responses.
	RetryDelay       time.Duration `validate:"gte=0"`
	MaxRetries       int           `validate:"gte=0"`
	HonorRetryAfter  bool
	MaxRetryAfter    time.Duration `validate:"gte=0"`
	BreakerThreshold int           `validate:"gte=1"`

	// RefreshInterval re-resolves the current city periodically (0 = disabled).
	RefreshInterval time.Duration `validate:"gte=0"`

	// DefaultCity is submitted to the pipeline on startup when set.
	DefaultCity string

	ZipkinURL string `validate:"omitempty,url"`
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	Port      string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Infof("No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", providers.DefaultOpenWeatherBaseURL)
	cfg.OpenMeteoBaseURL = getenvDefault("OPENMETEO_BASE_URL", providers.DefaultOpenMeteoBaseURL)
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.Provider = strings.ToLower(getenvDefault("WEATHER_PROVIDER", ProviderOpenWeather))
	cfg.DefaultCity = os.Getenv("DEFAULT_CITY")
	cfg.ZipkinURL = os.Getenv("ZIPKIN_URL")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.Port = getenvDefault("PORT", "8080")

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"DEBOUNCE_WINDOW", pipeline.DefaultDebounce.String(), &cfg.DebounceWindow},
		{"RETRY_DELAY", providers.DefaultRetryDelay.String(), &cfg.RetryDelay},
		{"MAX_RETRY_AFTER", providers.DefaultMaxRetryAfter.String(), &cfg.MaxRetryAfter},
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	var err error
	if cfg.MaxRetries, err = getenvInt("MAX_RETRIES", providers.DefaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.BreakerThreshold, err = getenvInt("BREAKER_THRESHOLD", providers.DefaultBreakerThreshold); err != nil {
		return nil, err
	}
	if cfg.HonorRetryAfter, err = getenvBool("HONOR_RETRY_AFTER", false); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Provider == ProviderOpenWeather && cfg.OpenWeatherAPIKey == "" {
		log.Warn("OPENWEATHER_API_KEY is not set; weather fetches will fail")
	}
	if cfg.GeocoderAPIKey == "" {
		log.Warn("GEOCODER_API_KEY is not set; city lookups will fail")
	}

	return cfg, nil
}

// Retry returns the retry settings for provider fetchers.
func (c *AppConfig) Retry() providers.RetryConfig {
	return providers.RetryConfig{
		MaxRetries:      c.MaxRetries,
		Delay:           c.RetryDelay,
		HonorRetryAfter: c.HonorRetryAfter,
		MaxRetryAfter:   c.MaxRetryAfter,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
