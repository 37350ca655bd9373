package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-query-pipeline/internal/weather/providers"
)

var envKeys = []string{
	"OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL", "OPENMETEO_BASE_URL",
	"GEOCODER_API_KEY", "WEATHER_PROVIDER", "DEFAULT_CITY", "ZIPKIN_URL",
	"LOG_LEVEL", "PORT", "HTTP_TIMEOUT", "DEBOUNCE_WINDOW", "RETRY_DELAY",
	"MAX_RETRY_AFTER", "REFRESH_INTERVAL", "MAX_RETRIES", "BREAKER_THRESHOLD",
	"HONOR_RETRY_AFTER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenWeather, cfg.Provider)
	assert.Equal(t, providers.DefaultOpenWeatherBaseURL, cfg.OpenWeatherBaseURL)
	assert.Equal(t, providers.DefaultOpenMeteoBaseURL, cfg.OpenMeteoBaseURL)
	assert.Equal(t, 800*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)

	assert.Equal(t, providers.RetryConfig{
		MaxRetries:    10,
		Delay:         3 * time.Second,
		MaxRetryAfter: 30 * time.Second,
	}, cfg.Retry())
	assert.Equal(t, providers.DefaultBreakerThreshold, cfg.BreakerThreshold)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_PROVIDER", "OpenMeteo")
	t.Setenv("DEBOUNCE_WINDOW", "250ms")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("HONOR_RETRY_AFTER", "true")
	t.Setenv("REFRESH_INTERVAL", "0")
	t.Setenv("ZIPKIN_URL", "http://localhost:9411/api/v2/spans")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenMeteo, cfg.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 3, cfg.Retry().MaxRetries)
	assert.True(t, cfg.Retry().HonorRetryAfter)
	assert.Zero(t, cfg.RefreshInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"WEATHER_PROVIDER", "accuweather"},
		{"HTTP_TIMEOUT", "soon"},
		{"HTTP_TIMEOUT", "0s"},
		{"DEBOUNCE_WINDOW", "-1s"},
		{"MAX_RETRIES", "many"},
		{"MAX_RETRIES", "-1"},
		{"BREAKER_THRESHOLD", "0"},
		{"HONOR_RETRY_AFTER", "maybe"},
		{"LOG_LEVEL", "verbose"},
		{"PORT", "http"},
		{"ZIPKIN_URL", "not a url"},
		{"OPENWEATHER_BASE_URL", "::"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
