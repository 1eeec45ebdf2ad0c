package weather

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/weather-poller/internal/logging"
)

const tracerName = "github.com/i474232898/weather-poller/internal/weather"

// Service dispatches aggregation requests to the registered sources.
type Service struct {
	sources map[SourceID]Source
	logger  *slog.Logger
}

// NewService creates a new Service. Sources registered under an id outside the
// recognized set are ignored.
func NewService(sources map[SourceID]Source, logger *slog.Logger) *Service {
	registered := make(map[SourceID]Source, len(sources))
	for id, src := range sources {
		if id.Valid() && src != nil {
			registered[id] = src
		}
	}
	return &Service{
		sources: registered,
		logger:  logging.Default(logger).With("component", "aggregator"),
	}
}

// FetchCity looks up a single city on one source. It backs the demo endpoint.
func (s *Service) FetchCity(ctx context.Context, id SourceID, city string) (Record, error) {
	src, ok := s.sources[id]
	if !ok {
		return Record{}, fmt.Errorf("source %d is not registered", int(id))
	}
	if cf, ok := src.(CityFetcher); ok {
		return cf.FetchCity(ctx, city)
	}
	records, err := src.Fetch(ctx, []string{city})
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%s: no data for %q", src.Name(), city)
	}
	return records[0], nil
}

func (s *Service) fetch(ctx context.Context, id SourceID, cities []string) ([]Record, error) {
	src := s.sources[id]

	ctx, span := otel.Tracer(tracerName).Start(ctx, "source.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("source", src.Name()),
			attribute.Int("cities", len(cities)),
		),
	)
	defer span.End()

	records, err := src.Fetch(ctx, cities)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.logger.Debug("source fetched", "source", src.Name(), "records", len(records))
	return records, nil
}
