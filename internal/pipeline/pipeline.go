// Package pipeline runs the aggregation workflow: fetch listings, validate,
// enrich with coordinates, weather and categories, then publish the merged
// schema.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/datespot/aggregator/internal/cache"
	"github.com/datespot/aggregator/internal/domain"
	"github.com/datespot/aggregator/internal/observability"
)

// Fetcher pulls raw listings from the event feed, grouped by date.
type Fetcher interface {
	FetchAllEvents(ctx context.Context, days int) map[string][]domain.RawEvent
}

// Geocoder resolves a venue name to coordinates.
type Geocoder interface {
	GeocodeVenue(ctx context.Context, venueName string) (domain.Coordinates, error)
}

// WeatherFetcher returns the weather summary for one date. Implementations
// never return nil; failures are carried in the report's Err field.
type WeatherFetcher interface {
	FetchWeatherForDate(ctx context.Context, date string) *domain.WeatherReport
}

// EventCategorizer assigns a category per event, grouped like the input.
// Ids it could not cover map to the empty string.
type EventCategorizer interface {
	CategorizeEvents(ctx context.Context, resultsByDate map[string][]domain.Event) map[string]map[string]string
}

// Publisher delivers the merged schema downstream.
type Publisher interface {
	Publish(ctx context.Context, schema *domain.Schema) error
}

// Params collects the pipeline's collaborators and settings.
type Params struct {
	Fetcher     Fetcher
	Geocoder    Geocoder
	Weather     WeatherFetcher
	Categorizer EventCategorizer
	Publishers  []Publisher
	Cache       *cache.Facade

	FetchDays          int
	ExcludedCategories []string

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Pipeline orchestrates one aggregation run end to end.
type Pipeline struct {
	fetcher     Fetcher
	geocoder    Geocoder
	weather     WeatherFetcher
	categorizer EventCategorizer
	publishers  []Publisher
	cache       *cache.Facade
	fetchDays   int
	excluded    map[string]struct{}
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Pipeline.
func New(p Params) *Pipeline {
	excluded := make(map[string]struct{}, len(p.ExcludedCategories))
	for _, c := range p.ExcludedCategories {
		excluded[c] = struct{}{}
	}
	return &Pipeline{
		fetcher:     p.Fetcher,
		geocoder:    p.Geocoder,
		weather:     p.Weather,
		categorizer: p.Categorizer,
		publishers:  p.Publishers,
		cache:       p.Cache,
		fetchDays:   p.FetchDays,
		excluded:    excluded,
		clock:       p.Clock,
		logger:      p.Logger,
		metrics:     p.Metrics,
	}
}

// CheckReadiness returns nil once at least one workflow run has published
// successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no workflow run has completed yet")
	}
	return nil
}

// RunLoop executes the workflow immediately and then on every interval
// tick until the context is cancelled. A failed run is logged and the loop
// continues; the next tick gets a fresh attempt.
func (p *Pipeline) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("workflow run failed", "error", err)
	}

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("workflow loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("workflow run failed", "error", err)
			}
		}
	}
}

// Run performs one full aggregation run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("workflow run starting", "fetch_days", p.fetchDays)
	p.metrics.WorkflowRunning.Set(1)
	defer p.metrics.WorkflowRunning.Set(0)

	start := time.Now()
	err := p.run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.WorkflowRuns.WithLabelValues("error").Inc()
		p.logger.Error("workflow run failed", "elapsed", elapsed, "error", err)
		return err
	}

	p.metrics.WorkflowRuns.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.logger.Info("workflow run complete", "elapsed", elapsed)
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	raw := p.stageFetch(ctx)
	totalRaw := 0
	for _, events := range raw {
		totalRaw += len(events)
	}
	p.metrics.EventsFetched.Add(float64(totalRaw))
	if totalRaw == 0 {
		return errors.New("no events fetched from feed")
	}

	valid := p.stageValidate(raw)
	totalValid := countEvents(valid)
	p.metrics.EventsValidated.Add(float64(totalValid))
	if totalValid == 0 {
		return errors.New("no events passed validation")
	}
	p.logger.Info("validation complete", "fetched", totalRaw, "valid", totalValid)

	p.stageGeocode(ctx, valid)
	weather := p.stageWeather(ctx, dateKeys(valid))
	categories := p.stageCategorize(ctx, valid)
	p.stageMerge(valid, categories)
	filtered := p.stageFilter(valid)

	schema := &domain.Schema{
		WeatherReportByDate: weather,
		ResultsByDate:       filtered,
	}

	if p.stagePublish(ctx, schema) > 0 {
		p.metrics.EventsPublished.Add(float64(countEvents(filtered)))
	}

	p.maintainCache(ctx)
	return nil
}

func (p *Pipeline) stageFetch(ctx context.Context) map[string][]domain.RawEvent {
	defer p.observeStage("fetch")()
	return p.fetcher.FetchAllEvents(ctx, p.fetchDays)
}

func (p *Pipeline) stageValidate(raw map[string][]domain.RawEvent) map[string][]domain.Event {
	defer p.observeStage("validate")()
	return validateEvents(raw, p.logger)
}

// stageGeocode attaches coordinates to every event it can resolve, cache
// first, then the geocoder. Failures leave the event without coordinates
// and never abort the run.
func (p *Pipeline) stageGeocode(ctx context.Context, resultsByDate map[string][]domain.Event) {
	defer p.observeStage("geocode")()

	total, resolved := 0, 0
	for _, events := range resultsByDate {
		for i := range events {
			ev := &events[i]
			if ev.VenueName == "" {
				continue
			}
			total++

			if coords, ok := p.cache.GetCoordinates(ctx, ev.VenueName); ok {
				ev.LocationCoordinates = &coords
				resolved++
				continue
			}

			coords, err := p.geocoder.GeocodeVenue(ctx, ev.VenueName)
			if err != nil {
				p.logger.Warn("geocoding failed, event keeps nil coordinates",
					"venue", ev.VenueName, "error", err)
				continue
			}
			ev.LocationCoordinates = &coords
			resolved++
			if !p.cache.SetCoordinates(ctx, ev.VenueName, coords) {
				p.logger.Warn("failed to cache coordinates", "venue", ev.VenueName)
			}
		}
	}
	p.logger.Info("geocoding complete", "resolved", resolved, "total", total)
}

// stageWeather fetches all dates concurrently. Every date gets a report;
// failed fetches carry their error inside the report.
func (p *Pipeline) stageWeather(ctx context.Context, dates []string) map[string]*domain.WeatherReport {
	defer p.observeStage("weather")()

	var (
		mu      sync.Mutex
		reports = make(map[string]*domain.WeatherReport, len(dates))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, date := range dates {
		g.Go(func() error {
			report := p.weather.FetchWeatherForDate(gctx, date)
			mu.Lock()
			reports[date] = report
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // fetch failures are carried in the reports

	return reports
}

func (p *Pipeline) stageCategorize(ctx context.Context, resultsByDate map[string][]domain.Event) map[string]map[string]string {
	defer p.observeStage("categorize")()
	return p.categorizer.CategorizeEvents(ctx, resultsByDate)
}

func (p *Pipeline) stageMerge(resultsByDate map[string][]domain.Event, categories map[string]map[string]string) {
	defer p.observeStage("merge")()
	categorized := mergeCategories(resultsByDate, categories)
	p.logger.Info("schema merge complete",
		"categorized", categorized, "total", countEvents(resultsByDate))
}

func (p *Pipeline) stageFilter(resultsByDate map[string][]domain.Event) map[string][]domain.Event {
	defer p.observeStage("filter")()
	filtered, excluded := filterExcluded(resultsByDate, p.excluded)
	p.logger.Info("category filter complete",
		"kept", countEvents(filtered), "excluded", excluded)
	return filtered
}

// stagePublish delivers the schema to every configured publisher and
// returns how many succeeded. Publication failures are logged but do not
// fail the run; the enriched schema is rebuilt on the next tick anyway.
func (p *Pipeline) stagePublish(ctx context.Context, schema *domain.Schema) int {
	defer p.observeStage("publish")()

	delivered := 0
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, schema); err != nil {
			p.logger.Warn("schema publication failed", "error", err)
			continue
		}
		delivered++
	}
	if len(p.publishers) > 0 && delivered == 0 {
		p.logger.Error("all schema publications failed", "publishers", len(p.publishers))
	}
	return delivered
}

// maintainCache reclaims expired rows and logs cache health after a
// successful run. Failures here never fail the run.
func (p *Pipeline) maintainCache(ctx context.Context) {
	removed, err := p.cache.PurgeExpired(ctx)
	if err != nil {
		p.logger.Warn("cache purge failed", "error", err)
		return
	}
	stats, err := p.cache.Stats(ctx)
	if err != nil {
		p.logger.Warn("cache stats unavailable", "error", err)
		return
	}
	p.logger.Info("cache maintenance complete",
		"removed", removed,
		"geocoding_entries", stats.Geocoding,
		"categorization_entries", stats.Categorization,
	)
}

func (p *Pipeline) observeStage(stage string) func() {
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func countEvents(resultsByDate map[string][]domain.Event) int {
	total := 0
	for _, events := range resultsByDate {
		total += len(events)
	}
	return total
}

func dateKeys(resultsByDate map[string][]domain.Event) []string {
	dates := make([]string, 0, len(resultsByDate))
	for date := range resultsByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
