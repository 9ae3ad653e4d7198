// Package orchestrator runs query cycles against the weather provider and owns
// the lookup state that presentation surfaces read.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weather-insight/datasource"
	"weather-insight/forecast"
	"weather-insight/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrBlankQuery is returned for empty or whitespace-only queries; state is untouched.
	ErrBlankQuery = errors.New("blank query")

	// ErrSuperseded is returned by a cycle that was overtaken by a newer Search.
	ErrSuperseded = errors.New("query superseded by a newer search")
)

// NotFoundReason is the user-visible reason for a rejected current-conditions lookup.
const NotFoundReason = "City not found. Please check the spelling."

// Listener receives every new snapshot. Listeners run on the committing
// goroutine, in subscription order, and must not call Search on it; a panic in
// a listener is logged. Wrap slow listeners in an AsyncListener.
type Listener func(models.Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Controller drives query cycles. It is safe for concurrent use; when cycles
// overlap only the most recent one is applied.
type Controller struct {
	weather  datasource.WeatherProvider
	forecast datasource.ForecastSource
	logger   *slog.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	state   models.Snapshot
	seq     uint64
	cancel  context.CancelFunc
	commits uint64

	// commits are delivered to listeners one at a time, in commit order
	turnMu    sync.Mutex
	turn      *sync.Cond
	delivered uint64

	subsMu sync.Mutex
	subs   []subscription
	nextID int
}

// Option customizes a Controller
type Option func(*Controller)

// WithLogger sets the controller's logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer overrides the global otel tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New creates a controller in the Idle state.
func New(weather datasource.WeatherProvider, forecastSource datasource.ForecastSource, opts ...Option) *Controller {
	c := &Controller{
		weather:  weather,
		forecast: forecastSource,
		logger:   slog.Default(),
		tracer:   otel.Tracer("weather-insight/orchestrator"),
		state: models.Snapshot{
			State:     models.RequestState{Phase: models.PhaseIdle},
			Forecast:  []models.DailyForecastEntry{},
			UpdatedAt: time.Now(),
		},
	}
	c.turn = sync.NewCond(&c.turnMu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search performs one query cycle for query and returns the resulting snapshot.
// Upstream failures are reported through the snapshot's state, not the error;
// the error is ErrBlankQuery or ErrSuperseded.
func (c *Controller) Search(ctx context.Context, query string) (snap models.Snapshot, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Snapshot(), ErrBlankQuery
	}

	ctx, span := c.tracer.Start(ctx, "orchestrator.Search", trace.WithAttributes(attribute.String("weather.query", query)))
	defer span.End()

	var seq uint64
	defer func() {
		if r := recover(); r != nil {
			if seq == 0 {
				panic(r)
			}
			c.logger.Error("query cycle panicked", "query", query, "panic", r)
			span.SetStatus(codes.Error, "panic")
			snap, err = c.finish(seq, models.RequestState{
				Phase:  models.PhaseFailed,
				Reason: fmt.Sprintf("internal error: %v", r),
				Kind:   models.FailureInternal,
			}, nil, nil)
		}
	}()

	var cancel context.CancelFunc
	ctx, cancel, seq = c.begin(ctx, query)
	defer cancel()

	// Step 1: current conditions are mandatory.
	current, err := c.weather.GetWeather(ctx, query)
	if err != nil {
		state := failureState(err)
		if !errors.Is(err, context.Canceled) || !c.superseded(seq) {
			c.logger.Error("current conditions lookup failed", "query", query, "provider", c.weather.Name(), "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, state.Reason)
		return c.finish(seq, state, nil, nil)
	}

	// Step 2: the forecast only enriches the result.
	daily := []models.DailyForecastEntry{}
	samples, err := c.forecast.FetchForecast(ctx, query)
	if err != nil {
		c.logger.Warn("forecast lookup failed, continuing without forecast", "query", query, "provider", c.forecast.Name(), "error", err)
		span.AddEvent("forecast unavailable")
	} else {
		// Step 3
		daily = forecast.Reduce(samples)
	}

	span.SetAttributes(attribute.Int("weather.forecast_days", len(daily)))
	return c.finish(seq, models.RequestState{Phase: models.PhaseSuccess}, &current, daily)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// CurrentCity returns the last successfully searched city, or "" before the first success.
func (c *Controller) CurrentCity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.City
}

// Subscribe registers fn for future snapshots and returns a function that removes it.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// begin cancels any in-flight cycle, enters Loading and returns the cycle's context and token.
func (c *Controller) begin(ctx context.Context, query string) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.cancel = cancel

	c.state.QueryID = uuid.NewString()
	c.state.Query = query
	c.state.State = models.RequestState{Phase: models.PhaseLoading}
	c.state.Current = nil
	c.state.Forecast = []models.DailyForecastEntry{}
	c.state.UpdatedAt = time.Now()
	c.commitLocked()

	return ctx, cancel, seq
}

// finish applies a terminal state if seq is still the latest cycle.
func (c *Controller) finish(seq uint64, state models.RequestState, current *models.CurrentConditions, daily []models.DailyForecastEntry) (models.Snapshot, error) {
	c.mu.Lock()
	if seq != c.seq {
		snap := c.copyLocked()
		c.mu.Unlock()
		return snap, ErrSuperseded
	}
	c.cancel = nil

	c.state.State = state
	c.state.UpdatedAt = time.Now()
	if state.Phase == models.PhaseSuccess {
		c.state.City = c.state.Query
		c.state.Current = current
		if daily == nil {
			daily = []models.DailyForecastEntry{}
		}
		c.state.Forecast = daily
	} else {
		c.state.Current = nil
		c.state.Forecast = []models.DailyForecastEntry{}
	}
	return c.commitLocked(), nil
}

func (c *Controller) superseded(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.seq
}

// commitLocked must be called with c.mu held and releases it. It waits for
// earlier commits to reach the listeners, then delivers this one. c.mu is not
// held while listeners run, so they may read the controller.
func (c *Controller) commitLocked() models.Snapshot {
	snap := c.copyLocked()
	c.commits++
	n := c.commits
	c.mu.Unlock()

	c.awaitTurn(n)
	defer c.endTurn(n)

	c.subsMu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	for _, s := range subs {
		callListener(c.logger, s.fn, snap)
	}
	return snap
}

func (c *Controller) awaitTurn(n uint64) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	for c.delivered != n-1 {
		c.turn.Wait()
	}
}

func (c *Controller) endTurn(n uint64) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	c.delivered = n
	c.turn.Broadcast()
}

// callListener runs fn and logs a panic instead of propagating it.
func callListener(logger *slog.Logger, fn Listener, snap models.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot listener panicked", "query_id", snap.QueryID, "phase", snap.State.Phase, "panic", r)
		}
	}()
	fn(snap)
}

func (c *Controller) copyLocked() models.Snapshot {
	snap := c.state
	if c.state.Current != nil {
		cur := *c.state.Current
		snap.Current = &cur
	}
	snap.Forecast = make([]models.DailyForecastEntry, len(c.state.Forecast))
	copy(snap.Forecast, c.state.Forecast)
	return snap
}

func failureState(err error) models.RequestState {
	if errors.Is(err, datasource.ErrNotFound) {
		return models.RequestState{Phase: models.PhaseFailed, Reason: NotFoundReason, Kind: models.FailureNotFound}
	}
	return models.RequestState{Phase: models.PhaseFailed, Reason: err.Error(), Kind: models.FailureTransport}
}
