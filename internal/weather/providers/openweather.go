package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultOpenWeatherBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements weather.Source for OpenWeatherMap (source 2).
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

// WithBackoff replaces the retry schedule. The zero value disables retries.
func (p *OpenWeatherProvider) WithBackoff(b BackoffConfig) *OpenWeatherProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, cities []string) ([]weather.Record, error) {
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

func (p *OpenWeatherProvider) FetchCity(ctx context.Context, city string) (weather.Record, error) {
	if p.apiKey == "" {
		return weather.Record{}, fmt.Errorf("%s: %w", p.name, ErrMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", city)
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Record{}, err
	}

	var payload openWeatherResponse
	if err := decodeBody(p.name, resp, &payload); err != nil {
		return weather.Record{}, err
	}
	return payload.toRecord(p.name)
}

type openWeatherResponse struct {
	Name string `json:"name"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
}

func (r openWeatherResponse) toRecord(source string) (weather.Record, error) {
	if r.Main == nil {
		return weather.Record{}, &weather.MalformedResponseError{Source: source, Field: "main"}
	}
	if len(r.Weather) == 0 {
		return weather.Record{}, &weather.MalformedResponseError{Source: source, Field: "weather"}
	}

	return weather.Record{
		City:        r.Name,
		Temperature: r.Main.Temp,
		Description: r.Weather[0].Description,
	}, nil
}
