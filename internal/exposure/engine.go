package exposure

import (
	"errors"
	"fmt"
	"math"

	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// Result holds population exposed at each intensity level, aggregated and per
// country, plus the resampled grids needed downstream by the loss models.
type Result struct {
	ByCountry map[string][pager.IntensityBins]float64
	Total     [pager.IntensityBins]float64

	// Shake is the intensity input; Population and Country are the auxiliary
	// grids resampled onto the shake geometry.
	Shake      *shaking.ShakeGrid
	Population *shaking.Grid
	Country    *shaking.Grid
}

// EconResult is economic value exposed per intensity level, in US dollars.
type EconResult struct {
	ByCountry map[string][pager.IntensityBins]float64
	Total     [pager.IntensityBins]float64
}

// MaxIntensity returns the highest MMI bin with at least minPopulation people
// exposed, together with the population at that bin. Zero when no bin
// qualifies.
func (r *Result) MaxIntensity(minPopulation float64) (int, float64) {
	for bin := pager.IntensityBins - 1; bin >= 0; bin-- {
		if r.Total[bin] >= minPopulation {
			return bin + 1, r.Total[bin]
		}
	}
	return 0, 0
}

// Engine computes exposure tables from a shaking grid and auxiliary datasets.
type Engine struct {
	countryNames map[int]string
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithCountryNames maps numeric country grid codes to country codes.
func WithCountryNames(names map[int]string) EngineOption {
	return func(e *Engine) {
		if names != nil {
			e.countryNames = names
		}
	}
}

// NewEngine constructs an exposure engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeExposure bins the population under each shake cell by intensity and
// country. Grid incompatibilities surface as ErrGridMismatch; degenerate or
// empty inputs surface as ComputationError, never as a raw fault.
func (e *Engine) ComputeExposure(shake *shaking.ShakeGrid, population, country *shaking.Grid) (*Result, error) {
	if err := shake.Validate(); err != nil {
		return nil, computationErr("shake grid", err)
	}
	if err := population.Validate(); err != nil {
		return nil, computationErr("population grid", err)
	}
	if err := country.Validate(); err != nil {
		return nil, computationErr("country grid", err)
	}

	pop, err := shaking.Resample(population, shake.MMI)
	if err != nil {
		return nil, fmt.Errorf("%w: population vs shaking: %v", ErrGridMismatch, err)
	}
	ccodes, err := shaking.Resample(country, shake.MMI)
	if err != nil {
		return nil, fmt.Errorf("%w: country vs shaking: %v", ErrGridMismatch, err)
	}

	result := &Result{
		ByCountry:  make(map[string][pager.IntensityBins]float64),
		Shake:      shake,
		Population: pop,
		Country:    ccodes,
	}

	anyFinite := false
	for i, mmi := range shake.MMI.Values {
		if math.IsNaN(mmi) || math.IsInf(mmi, 0) {
			continue
		}
		anyFinite = true
		people := pop.Values[i]
		if people <= 0 {
			continue
		}
		bin := intensityBin(mmi)
		if bin < 0 {
			continue
		}
		ccode := e.countryName(int(ccodes.Values[i]))
		bins := result.ByCountry[ccode]
		bins[bin] += people
		result.ByCountry[ccode] = bins
		result.Total[bin] += people
	}
	if !anyFinite {
		return nil, computationErr("intensity field", errors.New("no finite intensity values"))
	}
	return result, nil
}

// ComputeEconomicExposure weights a population exposure result by per-country
// dollars-per-person factors (GDP per capita times an exposure ratio).
func (e *Engine) ComputeEconomicExposure(result *Result, dollarsPerPerson map[string]float64, fallback float64) (*EconResult, error) {
	if result == nil {
		return nil, computationErr("economic exposure", errors.New("nil exposure result"))
	}
	if fallback <= 0 {
		return nil, computationErr("economic exposure", fmt.Errorf("non-positive fallback weight %f", fallback))
	}
	econ := &EconResult{ByCountry: make(map[string][pager.IntensityBins]float64, len(result.ByCountry))}
	for ccode, bins := range result.ByCountry {
		weight, ok := dollarsPerPerson[ccode]
		if !ok || weight <= 0 {
			weight = fallback
		}
		var weighted [pager.IntensityBins]float64
		for bin, people := range bins {
			weighted[bin] = people * weight
			econ.Total[bin] += weighted[bin]
		}
		econ.ByCountry[ccode] = weighted
	}
	return econ, nil
}

func (e *Engine) countryName(code int) string {
	if e.countryNames != nil {
		if name, ok := e.countryNames[code]; ok {
			return name
		}
	}
	return fmt.Sprintf("C%03d", code)
}

// intensityBin maps an MMI value to a zero-based bin index, or -1 when the
// value is below the instrumented range.
func intensityBin(mmi float64) int {
	bin := int(math.Round(mmi))
	if bin < 1 {
		return -1
	}
	if bin > pager.IntensityBins {
		bin = pager.IntensityBins
	}
	return bin - 1
}
