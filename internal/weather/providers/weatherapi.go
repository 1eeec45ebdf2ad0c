package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultWeatherAPIBaseURL is the WeatherAPI.com v1 endpoint root.
const DefaultWeatherAPIBaseURL = "http://api.weatherapi.com/v1"

// WeatherAPIProvider implements weather.Source for WeatherAPI.com (source 1).
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewWeatherAPIProvider creates the provider. An empty baseURL selects the
// public endpoint.
func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIBaseURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

// WithBackoff replaces the retry schedule. The zero value disables retries.
func (p *WeatherAPIProvider) WithBackoff(b BackoffConfig) *WeatherAPIProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

// Fetch queries each city in turn and returns the records in input order.
func (p *WeatherAPIProvider) Fetch(ctx context.Context, cities []string) ([]weather.Record, error) {
	records := make([]weather.Record, 0, len(cities))
	for _, city := range cities {
		r, err := p.FetchCity(ctx, city)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// FetchCity queries the current conditions for one city.
func (p *WeatherAPIProvider) FetchCity(ctx context.Context, city string) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, fmt.Errorf("%s: %w", p.name, ErrMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", city)

		u := fmt.Sprintf("%s/current.json?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Record{}, err
	}

	var payload weatherAPIResponse
	if err := decodeBody(p.name, resp, &payload); err != nil {
		return weather.Record{}, err
	}
	return payload.toRecord(p.name)
}

type weatherAPIResponse struct {
	Location *struct {
		Name string `json:"name"`
	} `json:"location"`
	Current *struct {
		TempC     *float64 `json:"temp_c"`
		Condition *struct {
			Text *string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

func (r weatherAPIResponse) toRecord(source string) (weather.Record, error) {
	switch {
	case r.Location == nil:
		return weather.Record{}, &weather.MalformedResponseError{Source: source, Field: "location"}
	case r.Current == nil:
		return weather.Record{}, &weather.MalformedResponseError{Source: source, Field: "current"}
	case r.Current.Condition == nil:
		return weather.Record{}, &weather.MalformedResponseError{Source: source, Field: "current.condition"}
	}

	return weather.Record{
		City:        r.Location.Name,
		Temperature: r.Current.TempC,
		Description: r.Current.Condition.Text,
	}, nil
}
