package weather

import (
	"context"
)

// Source abstracts a weather data source (WeatherAPI, OpenWeatherMap, the local file).
// Fetch returns one record per matched city; remote sources keep the input order.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cities []string) ([]Record, error)
}

// CityFetcher is implemented by sources that can look up a single city.
type CityFetcher interface {
	FetchCity(ctx context.Context, city string) (Record, error)
}
