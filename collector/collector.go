// Package collector keeps the displayed conditions fresh by re-running the
// last successful lookup on a schedule.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weather-insight/models"
	"weather-insight/orchestrator"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule refreshes every ten minutes
const DefaultSchedule = "@every 10m"

// Searcher is the part of the orchestrator the refresher drives
type Searcher interface {
	Search(ctx context.Context, query string) (models.Snapshot, error)
	Snapshot() models.Snapshot
	CurrentCity() string
}

// Refresher re-searches the controller's current city on a cron schedule
type Refresher struct {
	target       Searcher
	defaultCity  string
	schedule     string
	fetchTimeout time.Duration
	logger       *slog.Logger

	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewRefresher validates schedule and creates a stopped refresher. An empty
// schedule means DefaultSchedule.
func NewRefresher(target Searcher, defaultCity, schedule string, logger *slog.Logger) (*Refresher, error) {
	if strings.TrimSpace(schedule) == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		target:       target,
		defaultCity:  strings.TrimSpace(defaultCity),
		schedule:     schedule,
		fetchTimeout: 15 * time.Second,
		logger:       logger,
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// SetFetchTimeout changes the timeout applied to each scheduled lookup
func (r *Refresher) SetFetchTimeout(timeout time.Duration) {
	r.fetchTimeout = timeout
}

// Start loads the default city in the background and begins the schedule.
// The returned function stops the schedule and waits for running lookups.
func (r *Refresher) Start(ctx context.Context) (func(), error) {
	runCtx, cancel := context.WithCancel(ctx)

	if _, err := r.cron.AddFunc(r.schedule, func() { r.refresh(runCtx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule refresh: %w", err)
	}

	if r.defaultCity != "" {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loadDefault(runCtx)
		}()
	}

	r.cron.Start()
	r.logger.Info("refresher started", "schedule", r.schedule, "default_city", r.defaultCity)

	return func() {
		cancel()
		<-r.cron.Stop().Done()
		r.wg.Wait()
	}, nil
}

// loadDefault performs the initial lookup shown before the user searches
func (r *Refresher) loadDefault(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	snap, err := r.target.Search(fetchCtx, r.defaultCity)
	if err != nil {
		r.logger.Debug("initial lookup did not apply", "city", r.defaultCity, "error", err)
		return
	}
	r.logger.Info("initial lookup finished", "city", r.defaultCity, "phase", snap.State.Phase)
}

// refresh re-runs the last successful lookup. It reports whether a lookup was issued.
func (r *Refresher) refresh(ctx context.Context) bool {
	city := r.target.CurrentCity()
	if city == "" {
		r.logger.Debug("nothing to refresh yet")
		return false
	}
	if r.target.Snapshot().State.Phase == models.PhaseLoading {
		r.logger.Debug("lookup in flight, skipping refresh", "city", city)
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	snap, err := r.target.Search(fetchCtx, city)
	switch {
	case errors.Is(err, orchestrator.ErrSuperseded):
		r.logger.Debug("refresh superseded by a newer search", "city", city)
	case err != nil:
		r.logger.Warn("refresh failed", "city", city, "error", err)
	case snap.State.Phase == models.PhaseFailed:
		r.logger.Warn("refresh finished with failure", "city", city, "reason", snap.State.Reason)
	default:
		r.logger.Debug("refreshed", "city", city)
	}
	return true
}
