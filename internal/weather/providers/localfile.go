package providers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultDataFile is the CSV file read by the local source when no path is configured.
const DefaultDataFile = "weather_data.csv"

// LocalFileProvider implements weather.Source over a CSV file (source 3).
// The file needs a header row with a "city" column; "temperature" and
// "description" columns are optional.
type LocalFileProvider struct {
	name string
	path string
}

func NewLocalFileProvider(path string) *LocalFileProvider {
	if path == "" {
		path = DefaultDataFile
	}
	return &LocalFileProvider{
		name: "localfile",
		path: path,
	}
}

func (p *LocalFileProvider) Name() string {
	return p.name
}

// Fetch scans the file and returns every row whose city exactly matches one of
// cities. Results follow file order; cities without a row are skipped.
func (p *LocalFileProvider) Fetch(ctx context.Context, cities []string) ([]weather.Record, error) {
	if len(cities) == 0 {
		return []weather.Record{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, &weather.TransportError{Source: p.name, Err: err}
	}
	defer f.Close()

	return p.scan(f, cities)
}

func (p *LocalFileProvider) scan(r io.Reader, cities []string) ([]weather.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &weather.MalformedResponseError{Source: p.name, Field: "city"}
		}
		return nil, &weather.TransportError{Source: p.name, Err: fmt.Errorf("read header: %w", err)}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.TrimSpace(h)] = i
	}
	cityCol, ok := cols["city"]
	if !ok {
		return nil, &weather.MalformedResponseError{Source: p.name, Field: "city"}
	}

	records := []weather.Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &weather.TransportError{Source: p.name, Err: fmt.Errorf("read row: %w", err)}
		}
		if cityCol >= len(row) {
			continue
		}

		for _, city := range cities {
			if city != row[cityCol] {
				continue
			}
			rec, err := p.toRecord(row, cols)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

func (p *LocalFileProvider) toRecord(row []string, cols map[string]int) (weather.Record, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := weather.Record{City: row[cols["city"]]}

	if raw := field("temperature"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return weather.Record{}, &weather.MalformedResponseError{Source: p.name, Field: "temperature"}
		}
		rec.Temperature = &t
	}
	if desc := field("description"); desc != "" {
		rec.Description = &desc
	}

	return rec, nil
}
