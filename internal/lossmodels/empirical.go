package lossmodels

import (
	"context"
	"errors"

	pager "quake-pager/internal/pager/domain"
)

// RateTable holds per-country loss rates by intensity bin with a fallback for
// countries absent from the table.
type RateTable struct {
	ByCountry map[string][pager.IntensityBins]float64
	Default   [pager.IntensityBins]float64
}

func (t RateTable) ratesFor(ccode string) [pager.IntensityBins]float64 {
	if t.ByCountry != nil {
		if rates, ok := t.ByCountry[ccode]; ok {
			return rates
		}
	}
	return t.Default
}

// EmpiricalFatalityModel estimates shaking deaths from population exposure
// using country-calibrated fatality rates.
type EmpiricalFatalityModel struct {
	rates RateTable
	g     float64
}

// NewEmpiricalFatalityModel constructs the model.
func NewEmpiricalFatalityModel(rates RateTable, g float64) (*EmpiricalFatalityModel, error) {
	if g <= 0 {
		return nil, errors.New("lossmodels: non-positive fatality g value")
	}
	return &EmpiricalFatalityModel{rates: rates, g: g}, nil
}

// Kind implements Model.
func (m *EmpiricalFatalityModel) Kind() Kind { return KindEmpiricalFatality }

// Run implements Model.
func (m *EmpiricalFatalityModel) Run(ctx context.Context, in Input) (*Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ModelError{Kind: m.Kind(), Err: err}
	}
	if in.Exposure == nil {
		return nil, &ModelError{Kind: m.Kind(), Err: errors.New("nil exposure result")}
	}
	byCountry := make(map[string]float64, len(in.Exposure.ByCountry))
	total := 0.0
	for ccode, bins := range in.Exposure.ByCountry {
		rates := m.rates.ratesFor(ccode)
		deaths := 0.0
		for bin, people := range bins {
			deaths += people * rates[bin]
		}
		byCountry[ccode] = deaths
		total += deaths
	}
	return &Estimate{
		Kind:      m.Kind(),
		Units:     "fatalities",
		Expected:  total,
		Level:     fatalityAlertLevel(total),
		G:         m.g,
		Bins:      lossBins(total, m.g, 1),
		ByCountry: byCountry,
	}, nil
}

// EmpiricalEconomicModel estimates dollar losses from economic exposure using
// country-calibrated loss ratios.
type EmpiricalEconomicModel struct {
	ratios RateTable
	g      float64
}

// NewEmpiricalEconomicModel constructs the model.
func NewEmpiricalEconomicModel(ratios RateTable, g float64) (*EmpiricalEconomicModel, error) {
	if g <= 0 {
		return nil, errors.New("lossmodels: non-positive economic g value")
	}
	return &EmpiricalEconomicModel{ratios: ratios, g: g}, nil
}

// Kind implements Model.
func (m *EmpiricalEconomicModel) Kind() Kind { return KindEmpiricalEconomic }

// Run implements Model.
func (m *EmpiricalEconomicModel) Run(ctx context.Context, in Input) (*Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ModelError{Kind: m.Kind(), Err: err}
	}
	if in.Economic == nil {
		return nil, &ModelError{Kind: m.Kind(), Err: errors.New("nil economic exposure")}
	}
	byCountry := make(map[string]float64, len(in.Economic.ByCountry))
	total := 0.0
	for ccode, bins := range in.Economic.ByCountry {
		ratios := m.ratios.ratesFor(ccode)
		dollars := 0.0
		for bin, exposed := range bins {
			dollars += exposed * ratios[bin]
		}
		byCountry[ccode] = dollars
		total += dollars
	}
	// Economic bins are denominated in millions of dollars.
	return &Estimate{
		Kind:      m.Kind(),
		Units:     "USD",
		Expected:  total,
		Level:     economicAlertLevel(total),
		G:         m.g,
		Bins:      lossBins(total, m.g, 1e6),
		ByCountry: byCountry,
	}, nil
}
