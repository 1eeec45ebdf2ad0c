package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-poller/internal/config"
	"github.com/i474232898/weather-poller/internal/logging"
	"github.com/i474232898/weather-poller/internal/logship"
	"github.com/i474232898/weather-poller/internal/weather"
)

var validate = validator.New()

// TestCity is the fixed city queried by the root integration check.
const TestCity = "Tel Aviv"

// LogShipper forwards request log records to the collector.
type LogShipper interface {
	Post(ctx context.Context, record any) (logship.Response, error)
}

// Options configures the HTTP app.
type Options struct {
	// DefaultCities and DefaultSources are used when a query omits them.
	DefaultCities  []string
	DefaultSources []weather.SourceID

	// Shipper may be nil, in which case nothing is shipped.
	Shipper LogShipper
	Logger  *slog.Logger
}

// NewApp builds the Fiber app with the central error handler, middleware and routes.
func NewApp(service *weather.Service, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-poller",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	RegisterRoutes(app, service, opts)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, opts Options) {
	log := logging.Default(opts.Logger).With("component", "httpapi")

	ship := func(ctx context.Context, record fiber.Map) {
		if opts.Shipper == nil {
			return
		}
		if _, err := opts.Shipper.Post(ctx, record); err != nil {
			log.Warn("failed to ship request log", "error", err, "kind", weather.Classify(err))
		}
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-poller",
		})
	})

	// Integration check: one live lookup against each remote provider.
	app.Get("/", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		ship(ctx, fiber.Map{"message": "received request at root route"})

		first, err := service.FetchCity(ctx, weather.SourceWeatherAPI, TestCity)
		if err != nil {
			return providerError(err)
		}
		second, err := service.FetchCity(ctx, weather.SourceOpenWeatherMap, TestCity)
		if err != nil {
			return providerError(err)
		}

		return c.JSON(fiber.Map{
			"message":                     "Test integrations API",
			"weather_api_1_test_response": first,
			"weather_api_2_test_response": second,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c, opts)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.Aggregate(c.UserContext(), q.Cities, q.sourceIDs())
		if err != nil {
			return providerError(err)
		}
		return c.JSON(result)
	})
}

// weatherQuery holds query parameters for the aggregation endpoint.
type weatherQuery struct {
	Cities  []string `validate:"max=20,dive,max=100"`
	Sources []int    `validate:"max=10"`
}

func (q weatherQuery) sourceIDs() []weather.SourceID {
	ids := make([]weather.SourceID, 0, len(q.Sources))
	for _, s := range q.Sources {
		ids = append(ids, weather.SourceID(s))
	}
	return ids
}

// parseWeatherQuery reads comma separated cities and sources. Out-of-range
// source ids are passed through so the aggregator can report them.
func parseWeatherQuery(c *fiber.Ctx, opts Options) (weatherQuery, error) {
	var q weatherQuery

	if raw, ok := queryValue(c, "cities"); ok {
		q.Cities = config.SplitList(raw)
	} else {
		q.Cities = opts.DefaultCities
	}

	if raw, ok := queryValue(c, "sources"); ok {
		sources, err := config.ParseSources(config.SplitList(raw))
		if err != nil {
			return q, err
		}
		q.Sources = sources
	} else {
		for _, id := range opts.DefaultSources {
			q.Sources = append(q.Sources, int(id))
		}
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// queryValue distinguishes an absent parameter from an empty one.
func queryValue(c *fiber.Ctx, key string) (string, bool) {
	args := c.Context().QueryArgs()
	if !args.Has(key) {
		return "", false
	}
	return strings.TrimSpace(string(args.Peek(key))), true
}

func providerError(err error) error {
	switch weather.Classify(err) {
	case weather.KindMalformed, weather.KindTransport:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}
