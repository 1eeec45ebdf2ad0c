// Command weather-poller polls weather sources on an interval and ships each
// result to a log collector. It can also serve the aggregation over HTTP.
//
// The base logger is built here from LOG_LEVEL and LOG_FORMAT and passed to
// every component; nothing calls slog.SetDefault.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-poller/internal/api/http"
	"github.com/i474232898/weather-poller/internal/config"
	"github.com/i474232898/weather-poller/internal/logging"
	"github.com/i474232898/weather-poller/internal/logship"
	"github.com/i474232898/weather-poller/internal/scheduler"
	"github.com/i474232898/weather-poller/internal/telemetry"
	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

var version = "dev"

func main() {
	pollCmd := newPollCommand()

	rootCmd := &cobra.Command{
		Use:           "weather-poller",
		Short:         "Poll weather sources and ship the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          pollCmd.RunE,
	}
	addPollFlags(rootCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(pollCmd, newServeCommand(), versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().String("cities", "", "comma separated cities (default: WEATHER_CITIES or Berlin,Sydney)")
	cmd.Flags().String("sources", "", "comma separated source ids 1-3 (default: WEATHER_SOURCES or all)")
	cmd.Flags().Int("interval", 0, "seconds between polls (default: POLLING_INTERVAL or 20)")
}

func newPollCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the polling loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyPollFlags(cmd, cfg); err != nil {
				return err
			}

			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(scheduler.Config{
				Cities:   cfg.Cities,
				Sources:  cfg.SourceIDs(),
				Interval: cfg.PollingInterval,
				Logger:   app.logger,
			}, app.service, app.shipper())
			return sched.Run(ctx)
		},
	}
	addPollFlags(cmd)
	return cmd
}

func applyPollFlags(cmd *cobra.Command, cfg *config.AppConfig) error {
	if cmd.Flags().Changed("cities") {
		v, _ := cmd.Flags().GetString("cities")
		cfg.Cities = config.SplitList(v)
	}
	if cmd.Flags().Changed("sources") {
		v, _ := cmd.Flags().GetString("sources")
		sources, err := config.ParseSources(config.SplitList(v))
		if err != nil {
			return fmt.Errorf("invalid --sources: %w", err)
		}
		cfg.Sources = sources
	}
	if cmd.Flags().Changed("interval") {
		v, _ := cmd.Flags().GetInt("interval")
		cfg.PollingInterval = time.Duration(v) * time.Second
	}
	return cfg.Validate()
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aggregation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetString("port")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := httpapi.NewApp(app.service, httpapi.Options{
				DefaultCities:  cfg.Cities,
				DefaultSources: cfg.SourceIDs(),
				Shipper:        app.shipper(),
				Logger:         app.logger,
			})

			errCh := make(chan error, 1)
			go func() {
				app.logger.Info("http server listening", "port", cfg.Port)
				errCh <- server.Listen(":" + cfg.Port)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server stopped: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.ShutdownWithContext(shutdownCtx); err != nil {
				app.logger.Error("error during shutdown", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().String("port", "", "listen port (default: PORT or 8000)")
	return cmd
}

// application holds the components shared by both commands.
type application struct {
	logger   *slog.Logger
	service  *weather.Service
	logs     *logship.Client
	shutdown telemetry.ShutdownFunc
}

func newApp(cfg *config.AppConfig) (*application, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, level, cfg.LogFormat)

	shutdown, err := telemetry.InitTracer(cfg.ZipkinURL, "weather-poller", version)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound provider and collector calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	backoff := providers.DefaultBackoff(cfg.HTTPMaxRetries)
	service := weather.NewService(map[weather.SourceID]weather.Source{
		weather.SourceWeatherAPI: providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.WeatherAPIBaseURL).
			WithBackoff(backoff),
		weather.SourceOpenWeatherMap: providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL).
			WithBackoff(backoff),
		weather.SourceLocalFile:      providers.NewLocalFileProvider(cfg.DataFile),
	}, logger)

	app := &application{logger: logger, service: service, shutdown: shutdown}
	if cfg.LogzHost != "" {
		app.logs = logship.New(httpClient, cfg.LogzHost, cfg.LogzToken, logger)
	} else {
		logger.Warn("LOGZ_HOST is not set; results will not be shipped")
	}
	return app, nil
}

// shipper returns a nil interface when shipping is disabled.
func (a *application) shipper() scheduler.Shipper {
	if a.logs == nil {
		return nil
	}
	return a.logs
}

func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown", "error", err)
	}
}
