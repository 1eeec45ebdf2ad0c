package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

var validate = validator.New()

type AppConfig struct {
	WeatherAPIKey     string
	OpenWeatherAPIKey string

	WeatherAPIBaseURL  string `validate:"required,url"`
	OpenWeatherBaseURL string `validate:"required,url"`

	// DataFile is the CSV read by the local source.
	DataFile string `validate:"required"`

	// Log collector endpoint and bulk token. Shipping is skipped when LogzHost is empty.
	LogzHost  string `validate:"omitempty,url"`
	LogzToken string

	// PollingInterval is the wait between two poll ticks.
	PollingInterval time.Duration `validate:"min=1s"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `validate:"min=1ms"`

	// HTTPMaxRetries is how often a failed provider request is retried with backoff.
	HTTPMaxRetries int `validate:"min=0,max=10"`

	// Cities and Sources polled on each tick.
	Cities  []string `validate:"min=1,dive,required"`
	Sources []int    `validate:"min=1,dive,oneof=1 2 3"`

	Port      string `validate:"required,numeric"`
	ZipkinURL string `validate:"omitempty,url"`
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=text json"`
}

// DefaultCities are polled when neither the environment nor the CLI names any.
var DefaultCities = []string{"Berlin", "Sydney"}

// Load reads configuration from the environment (and .env if present) with
// sensible defaults, then validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHERMAP_API_KEY")
	cfg.WeatherAPIBaseURL = getenvDefault("WEATHER_API_BASE_URL", providers.DefaultWeatherAPIBaseURL)
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHERMAP_BASE_URL", providers.DefaultOpenWeatherBaseURL)
	cfg.DataFile = getenvDefault("WEATHER_DATA_FILE", providers.DefaultDataFile)

	cfg.LogzHost = os.Getenv("LOGZ_HOST")
	cfg.LogzToken = os.Getenv("LOGZ_TOKEN")

	// Polling interval in whole seconds, default 20.
	interval, err := getenvInt("POLLING_INTERVAL", 20)
	if err != nil {
		return nil, err
	}
	cfg.PollingInterval = time.Duration(interval) * time.Second

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.HTTPMaxRetries, err = getenvInt("HTTP_MAX_RETRIES", 0)
	if err != nil {
		return nil, err
	}

	cfg.Cities = DefaultCities
	if v := os.Getenv("WEATHER_CITIES"); v != "" {
		cfg.Cities = SplitList(v)
	}

	cfg.Sources = []int{1, 2, 3}
	if v := os.Getenv("WEATHER_SOURCES"); v != "" {
		sources, err := ParseSources(SplitList(v))
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_SOURCES: %w", err)
		}
		cfg.Sources = sources
	}

	cfg.Port = getenvDefault("PORT", "8000")
	cfg.ZipkinURL = os.Getenv("ZIPKIN_URL")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags. Call it again after applying CLI overrides.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SourceIDs converts Sources to weather.SourceID values.
func (c *AppConfig) SourceIDs() []weather.SourceID {
	ids := make([]weather.SourceID, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, weather.SourceID(s))
	}
	return ids
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseSources parses source identifiers. Range checking is left to Validate.
func ParseSources(items []string) ([]int, error) {
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, fmt.Errorf("source %q is not a number", item)
		}
		out = append(out, n)
	}
	return out, nil
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
