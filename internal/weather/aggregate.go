package weather

import (
	"context"
	"fmt"
)

// Aggregate validates the request and then queries every requested source in
// order, keying each result by SourceID.Key. Invalid input is reported through
// Result.Warning rather than an error. A failing source aborts the call.
// Duplicate ids are fetched again and overwrite the same key.
func (s *Service) Aggregate(ctx context.Context, cities []string, sources []SourceID) (Result, error) {
	if len(cities) == 0 {
		return Result{Warning: WarnNoCities}, nil
	}
	if len(sources) == 0 {
		return Result{Warning: WarnNoSources}, nil
	}
	for _, id := range sources {
		if _, ok := s.sources[id]; !ok || !id.Valid() {
			return Result{Warning: WarnInvalidSources}, nil
		}
	}

	result := Result{Sources: make(map[string][]Record, len(sources))}
	for _, id := range sources {
		records, err := s.fetch(ctx, id, cities)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", id.Key(), err)
		}
		if records == nil {
			records = []Record{}
		}
		result.Sources[id.Key()] = records
	}

	return result, nil
}
