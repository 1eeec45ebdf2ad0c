package providers

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/i474232898/weather-poller/internal/weather"
)

func TestLocalFileProviderMatchingCities(t *testing.T) {
	p := NewLocalFileProvider(filepath.Join("testdata", "weather_data.csv"))

	records, err := p.Fetch(context.Background(), []string{"Berlin", "Sydney"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// File order, not request order.
	if records[0].City != "Sydney" || records[1].City != "Berlin" {
		t.Errorf("unexpected order: %q, %q", records[0].City, records[1].City)
	}
	if records[1].Temperature == nil || *records[1].Temperature != 18.5 {
		t.Errorf("Berlin temperature = %v, want 18.5", records[1].Temperature)
	}
	if records[1].Description == nil || *records[1].Description != "Scattered clouds" {
		t.Errorf("Berlin description = %v, want Scattered clouds", records[1].Description)
	}
}

func TestLocalFileProviderUnknownCity(t *testing.T) {
	p := NewLocalFileProvider(filepath.Join("testdata", "weather_data.csv"))

	records, err := p.Fetch(context.Background(), []string{"NonexistentCity"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", records)
	}
}

func TestLocalFileProviderCaseSensitive(t *testing.T) {
	p := NewLocalFileProvider(filepath.Join("testdata", "weather_data.csv"))

	records, err := p.Fetch(context.Background(), []string{"berlin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no match for lower-case city, got %d records", len(records))
	}
}

func TestLocalFileProviderEmptyTemperature(t *testing.T) {
	p := NewLocalFileProvider(filepath.Join("testdata", "weather_data.csv"))

	records, err := p.Fetch(context.Background(), []string{"London"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Temperature != nil {
		t.Errorf("temperature = %v, want nil", *records[0].Temperature)
	}
}

func TestLocalFileProviderMissingFile(t *testing.T) {
	p := NewLocalFileProvider(filepath.Join(t.TempDir(), "missing.csv"))

	_, err := p.Fetch(context.Background(), []string{"Berlin"})
	var transport *weather.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestLocalFileProviderScan(t *testing.T) {
	p := NewLocalFileProvider("")

	t.Run("missing city column", func(t *testing.T) {
		_, err := p.scan(strings.NewReader("name,temperature\nBerlin,1\n"), []string{"Berlin"})
		var malformed *weather.MalformedResponseError
		if !errors.As(err, &malformed) || malformed.Field != "city" {
			t.Fatalf("expected malformed city error, got %v", err)
		}
	})

	t.Run("bad temperature", func(t *testing.T) {
		_, err := p.scan(strings.NewReader("city,temperature\nBerlin,warm\n"), []string{"Berlin"})
		var malformed *weather.MalformedResponseError
		if !errors.As(err, &malformed) || malformed.Field != "temperature" {
			t.Fatalf("expected malformed temperature error, got %v", err)
		}
	})

	t.Run("duplicate request appends twice", func(t *testing.T) {
		records, err := p.scan(strings.NewReader("city\nBerlin\n"), []string{"Berlin", "Berlin"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("city only columns", func(t *testing.T) {
		records, err := p.scan(strings.NewReader("city\nSydney\n"), []string{"Sydney"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 || records[0].Temperature != nil || records[0].Description != nil {
			t.Errorf("unexpected records: %+v", records)
		}
	})
}
