package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quake-pager/internal/catalog"
	"quake-pager/internal/exposure"
	"quake-pager/internal/lossmodels"
	"quake-pager/internal/observability/metrics"
	pagerapp "quake-pager/internal/pager/application"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// ErrBadInput marks failures caused by the event's input grids rather than by
// the pipeline itself.
var ErrBadInput = errors.New("pipeline: bad input")

const (
	defaultLoadTimeout    = 30 * time.Second
	defaultHistoricalRows = 3
	defaultCityRows       = 11
)

// GridLoader reads grids from storage.
type GridLoader interface {
	LoadShakeGrid(ctx context.Context, path string) (*shaking.ShakeGrid, error)
	LoadGrid(ctx context.Context, path string) (*shaking.Grid, error)
}

// Publisher appends an assembled version to the event history.
type Publisher interface {
	Publish(ctx context.Context, version *pager.Version) (*pager.Version, error)
}

// Request identifies one shaking grid to process.
type Request struct {
	EventCode     string
	ShakeGridPath string
}

// Runner orchestrates one event end to end: dataset selection, exposure,
// loss models, aggregation, and publishing. Each event is processed in
// isolation; a failure never affects other events.
type Runner struct {
	cat        catalog.Catalog
	selector   *catalog.Selector
	loader     GridLoader
	engine     *exposure.Engine
	models     *lossmodels.Runner
	aggregator *pagerapp.Aggregator
	publisher  Publisher
	historical *catalog.HistoricalCatalog
	cities     *catalog.CityCatalog

	dollarsPerPerson map[string]float64
	dollarsFallback  float64

	loadTimeout time.Duration
	logger      *log.Logger
}

// Option configures the runner.
type Option func(*Runner)

// WithHistoricalCatalog attaches the historical earthquake catalog.
func WithHistoricalCatalog(historical *catalog.HistoricalCatalog) Option {
	return func(r *Runner) { r.historical = historical }
}

// WithCityCatalog attaches the city catalog.
func WithCityCatalog(cities *catalog.CityCatalog) Option {
	return func(r *Runner) { r.cities = cities }
}

// WithEconomicWeights sets per-country dollars-per-person factors.
func WithEconomicWeights(weights map[string]float64, fallback float64) Option {
	return func(r *Runner) {
		r.dollarsPerPerson = weights
		if fallback > 0 {
			r.dollarsFallback = fallback
		}
	}
}

// WithLoadTimeout bounds each grid load.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.loadTimeout = timeout
		}
	}
}

// NewRunner constructs a pipeline runner.
func NewRunner(
	cat catalog.Catalog,
	selector *catalog.Selector,
	loader GridLoader,
	engine *exposure.Engine,
	models *lossmodels.Runner,
	aggregator *pagerapp.Aggregator,
	publisher Publisher,
	logger *log.Logger,
	opts ...Option,
) (*Runner, error) {
	if selector == nil || loader == nil || engine == nil || models == nil || aggregator == nil || publisher == nil {
		return nil, errors.New("pipeline: missing collaborator")
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		cat:             cat,
		selector:        selector,
		loader:          loader,
		engine:          engine,
		models:          models,
		aggregator:      aggregator,
		publisher:       publisher,
		dollarsFallback: 1,
		loadTimeout:     defaultLoadTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ProcessEvent runs the full pipeline for one shaking grid and returns the
// published version.
func (r *Runner) ProcessEvent(ctx context.Context, req Request) (*pager.Version, error) {
	started := time.Now()
	version, err := r.processEvent(ctx, req)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObservePipelineRun(result, time.Since(started))
	return version, err
}

func (r *Runner) processEvent(ctx context.Context, req Request) (*pager.Version, error) {
	if req.ShakeGridPath == "" {
		return nil, fmt.Errorf("%w: empty shake grid path", ErrBadInput)
	}

	shake, err := r.loadShakeGrid(ctx, req.ShakeGridPath)
	if err != nil {
		return nil, fmt.Errorf("%w: shake grid %s: %v", ErrBadInput, req.ShakeGridPath, err)
	}
	eventCode := req.EventCode
	if eventCode == "" {
		eventCode = shake.Header.EventID
	}

	populationPath, err := r.selector.Select(r.cat.Population, shake.Header.OriginTime.Year())
	if err != nil {
		return nil, err
	}
	r.logger.Printf("pipeline: event %s year %d uses population grid %s",
		eventCode, shake.Header.OriginTime.Year(), populationPath)

	population, err := r.loadGrid(ctx, populationPath)
	if err != nil {
		return nil, fmt.Errorf("population grid %s: %w", populationPath, err)
	}
	country, err := r.loadGrid(ctx, r.cat.CountryGrid)
	if err != nil {
		return nil, fmt.Errorf("country grid %s: %w", r.cat.CountryGrid, err)
	}
	// The urban/rural grid is optional; without it only the semi-empirical
	// model fails, and it fails in isolation.
	var urbanRural *shaking.Grid
	if r.cat.UrbanRural != "" {
		urbanRural, err = r.loadGrid(ctx, r.cat.UrbanRural)
		if err != nil {
			r.logger.Printf("pipeline: urban/rural grid %s unavailable: %v", r.cat.UrbanRural, err)
			urbanRural = nil
		}
	}

	exposureStart := time.Now()
	exposureResult, err := r.engine.ComputeExposure(shake, population, country)
	if err != nil {
		metrics.ObserveExposure(metrics.ResultError, time.Since(exposureStart))
		return nil, err
	}
	economic, err := r.engine.ComputeEconomicExposure(exposureResult, r.dollarsPerPerson, r.dollarsFallback)
	if err != nil {
		metrics.ObserveExposure(metrics.ResultError, time.Since(exposureStart))
		return nil, err
	}
	metrics.ObserveExposure(metrics.ResultSuccess, time.Since(exposureStart))

	outcomes := r.models.RunAll(ctx, lossmodels.Input{
		Exposure:   exposureResult,
		Economic:   economic,
		UrbanRural: urbanRural,
	})
	for _, outcome := range outcomes {
		if outcome.Failed() {
			r.logger.Printf("pipeline: event %s model %s failed: %v", eventCode, outcome.Kind, outcome.Err)
		}
	}

	version, err := r.aggregator.Assemble(pagerapp.AssembleInput{
		EventCode:  eventCode,
		Header:     shake.Header,
		Exposure:   exposureResult,
		Economic:   economic,
		Outcomes:   outcomes,
		Historical: r.historical.Nearby(shake.Header.Lat, shake.Header.Lon, defaultHistoricalRows),
		Cities:     r.cities.Exposed(shake.MMI, defaultCityRows),
	})
	if err != nil {
		return nil, err
	}
	return r.publisher.Publish(ctx, version)
}

func (r *Runner) loadShakeGrid(ctx context.Context, path string) (*shaking.ShakeGrid, error) {
	loadCtx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()
	shake, err := r.loader.LoadShakeGrid(loadCtx, path)
	if err != nil {
		return nil, err
	}
	if err := shake.Validate(); err != nil {
		return nil, err
	}
	return shake, nil
}

func (r *Runner) loadGrid(ctx context.Context, path string) (*shaking.Grid, error) {
	loadCtx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()
	grid, err := r.loader.LoadGrid(loadCtx, path)
	if err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}
