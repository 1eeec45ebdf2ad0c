package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/i474232898/weather-poller/internal/weather"
)

// clearEnv blanks every variable Load reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WEATHER_API_KEY", "OPENWEATHERMAP_API_KEY", "WEATHER_API_BASE_URL",
		"OPENWEATHERMAP_BASE_URL", "WEATHER_DATA_FILE", "LOGZ_HOST", "LOGZ_TOKEN",
		"POLLING_INTERVAL", "HTTP_TIMEOUT", "HTTP_MAX_RETRIES", "WEATHER_CITIES", "WEATHER_SOURCES",
		"PORT", "ZIPKIN_URL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollingInterval != 20*time.Second {
		t.Errorf("PollingInterval = %v, want 20s", cfg.PollingInterval)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
	if !reflect.DeepEqual(cfg.Cities, []string{"Berlin", "Sydney"}) {
		t.Errorf("Cities = %v", cfg.Cities)
	}
	if !reflect.DeepEqual(cfg.SourceIDs(), []weather.SourceID{1, 2, 3}) {
		t.Errorf("Sources = %v", cfg.Sources)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.DataFile != "weather_data.csv" {
		t.Errorf("DataFile = %q", cfg.DataFile)
	}
	if cfg.HTTPMaxRetries != 0 {
		t.Errorf("HTTPMaxRetries = %d, want 0", cfg.HTTPMaxRetries)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLLING_INTERVAL", "5")
	t.Setenv("WEATHER_API_KEY", "wa")
	t.Setenv("OPENWEATHERMAP_API_KEY", "owm")
	t.Setenv("LOGZ_HOST", "https://listener.logz.io:8071")
	t.Setenv("LOGZ_TOKEN", "tok")
	t.Setenv("WEATHER_CITIES", "Paris, Tel Aviv ,")
	t.Setenv("WEATHER_SOURCES", "3,1")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HTTP_MAX_RETRIES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollingInterval != 5*time.Second {
		t.Errorf("PollingInterval = %v, want 5s", cfg.PollingInterval)
	}
	if cfg.WeatherAPIKey != "wa" || cfg.OpenWeatherAPIKey != "owm" {
		t.Errorf("api keys not loaded: %+v", cfg)
	}
	if cfg.LogzHost != "https://listener.logz.io:8071" || cfg.LogzToken != "tok" {
		t.Errorf("logz settings not loaded: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Cities, []string{"Paris", "Tel Aviv"}) {
		t.Errorf("Cities = %v", cfg.Cities)
	}
	if !reflect.DeepEqual(cfg.Sources, []int{3, 1}) {
		t.Errorf("Sources = %v", cfg.Sources)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.HTTPMaxRetries != 3 {
		t.Errorf("HTTPMaxRetries = %d, want 3", cfg.HTTPMaxRetries)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"non-numeric interval", "POLLING_INTERVAL", "soon"},
		{"zero interval", "POLLING_INTERVAL", "0"},
		{"bad timeout", "HTTP_TIMEOUT", "fast"},
		{"non-numeric retries", "HTTP_MAX_RETRIES", "many"},
		{"negative retries", "HTTP_MAX_RETRIES", "-1"},
		{"out of range source", "WEATHER_SOURCES", "1,4"},
		{"non-numeric source", "WEATHER_SOURCES", "one"},
		{"bad log host", "LOGZ_HOST", "not a url"},
		{"bad log format", "LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Berlin,,Sydney , ")
	if !reflect.DeepEqual(got, []string{"Berlin", "Sydney"}) {
		t.Errorf("SplitList = %v", got)
	}
	if SplitList("") != nil {
		t.Error("SplitList(\"\") should be nil")
	}
}
