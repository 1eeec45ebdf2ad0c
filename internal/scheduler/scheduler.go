package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-poller/internal/logging"
	"github.com/i474232898/weather-poller/internal/logship"
	"github.com/i474232898/weather-poller/internal/weather"
)

// CycleMessage is the message attached to every shipped poll record.
const CycleMessage = "WeatherApp | data poll cycle"

// State is the lifecycle position of the poll loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var errAlreadyStarted = errors.New("scheduler: already started")

// Aggregator is the part of weather.Service the loop needs.
type Aggregator interface {
	Aggregate(ctx context.Context, cities []string, sources []weather.SourceID) (weather.Result, error)
}

// Shipper forwards a record to the log collector.
type Shipper interface {
	Post(ctx context.Context, record any) (logship.Response, error)
}

// LogRecord is the body shipped after each successful tick.
type LogRecord struct {
	Message string         `json:"message"`
	Data    weather.Result `json:"data"`
	CycleID string         `json:"cycle_id,omitempty"`
}

// Config holds the loop settings.
type Config struct {
	Cities   []string
	Sources  []weather.SourceID
	Interval time.Duration

	// Out receives the printed results; defaults to stdout.
	Out    io.Writer
	Logger *slog.Logger
}

// Scheduler polls the aggregator on a fixed interval until its context ends.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	aggregator Aggregator
	shipper    Shipper

	cities   []string
	sources  []weather.SourceID
	interval time.Duration
	out      io.Writer
	logger   *slog.Logger

	// tickMu is held for the whole of a tick so shutdown can wait it out.
	tickMu  sync.Mutex
	tickCtx context.Context

	state    *atomic.Int32
	ticks    *atomic.Int64
	failures *atomic.Int64
}

// New creates a new Scheduler. A nil shipper disables log shipping.
func New(cfg Config, aggregator Aggregator, shipper Shipper) *Scheduler {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		aggregator: aggregator,
		shipper:    shipper,
		cities:     cfg.Cities,
		sources:    cfg.Sources,
		interval:   cfg.Interval,
		out:        out,
		logger:     logging.Default(cfg.Logger).With("component", "scheduler"),
		tickCtx:    context.Background(),
		state:      atomic.NewInt32(int32(StateIdle)),
		ticks:      atomic.NewInt64(0),
		failures:   atomic.NewInt64(0),
	}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Ticks returns how many ticks ran and how many of them failed.
func (s *Scheduler) Ticks() (total, failed int64) {
	return s.ticks.Load(), s.failures.Load()
}

// Run ticks immediately and then waits interval after each tick ends before
// starting the next, until ctx is done. On cancellation it lets an in-flight
// tick finish, stops scheduling and returns. Ticks run on a context detached
// from ctx so outbound calls are not cut short.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CAS(int32(StateIdle), int32(StateRunning)) {
		return errAlreadyStarted
	}
	if s.interval <= 0 {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("scheduler: interval must be positive, got %v", s.interval)
	}

	s.tickCtx = context.WithoutCancel(ctx)

	if _, err := s.scheduler.Every(s.interval).LimitRunsTo(1).Do(s.tick); err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("scheduler: schedule poll job: %w", err)
	}

	s.logger.Info("started weather poll loop",
		"interval", s.interval, "cities", s.cities, "sources", s.sources)
	s.scheduler.StartAsync()

	<-ctx.Done()

	s.state.Store(int32(StateShuttingDown))
	s.logger.Info("shutdown requested; waiting for current tick")

	// A tick that observed StateRunning has registered its successor by the
	// time tickMu is free, so Stop sees every pending job.
	s.tickMu.Lock()
	s.tickMu.Unlock()
	s.scheduler.Stop()

	s.state.Store(int32(StateStopped))
	total, failed := s.Ticks()
	s.logger.Info("weather poll loop stopped", "ticks", total, "failed", failed)
	return nil
}

// scheduleNext registers a single run one interval from now. Called at the
// end of every tick, so the wait is measured from when the tick finished.
func (s *Scheduler) scheduleNext(logger *slog.Logger) {
	if s.State() != StateRunning {
		return
	}
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().LimitRunsTo(1).Do(s.tick); err != nil {
		logger.Error("failed to schedule next poll tick", "error", err)
	}
}

// tick is the gocron job body. Failures are logged and never stop the loop.
func (s *Scheduler) tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.State() != StateRunning {
		return
	}

	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID)
	s.ticks.Inc()

	defer s.scheduleNext(logger)
	defer func() {
		if r := recover(); r != nil {
			s.failures.Inc()
			logger.Error("poll tick panicked", "panic", r)
		}
	}()

	start := time.Now()
	if err := s.runTick(s.tickCtx, logger, cycleID); err != nil {
		s.failures.Inc()
		s.logFailure(logger, err)
		return
	}
	logger.Info("poll tick finished", "duration", time.Since(start))
}

// runTick performs one aggregate-print-ship cycle.
func (s *Scheduler) runTick(ctx context.Context, logger *slog.Logger, cycleID string) error {
	ctx, span := otel.Tracer("github.com/i474232898/weather-poller/internal/scheduler").Start(ctx, "poll.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle_id", cycleID))

	result, err := s.aggregator.Aggregate(ctx, s.cities, s.sources)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("aggregate: %w", err)
	}
	if result.HasWarning() {
		logger.Warn("poll input rejected", "warning", result.Warning)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(s.out, "Finished Polling Data:")
	fmt.Fprintln(s.out, string(encoded))

	if s.shipper == nil {
		return nil
	}
	record := LogRecord{Message: CycleMessage, Data: result, CycleID: cycleID}
	if _, err := s.shipper.Post(ctx, record); err != nil {
		span.RecordError(err)
		return fmt.Errorf("ship log record: %w", err)
	}
	return nil
}

func (s *Scheduler) logFailure(logger *slog.Logger, err error) {
	kind := weather.Classify(err)
	switch kind {
	case weather.KindMalformed:
		logger.Warn("poll tick failed: provider returned malformed data", "error", err, "kind", kind)
	case weather.KindCanceled:
		logger.Info("poll tick canceled", "error", err, "kind", kind)
	default:
		logger.Error("poll tick failed", "error", err, "kind", kind)
	}
}
