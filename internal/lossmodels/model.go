package lossmodels

import (
	"context"
	"errors"
	"fmt"

	"quake-pager/internal/exposure"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// Kind names one loss model.
type Kind string

const (
	KindEmpiricalFatality     Kind = "empirical_fatality"
	KindEmpiricalEconomic     Kind = "empirical_economic"
	KindSemiEmpiricalFatality Kind = "semi_empirical_fatality"
)

// ErrMissingUrbanRural is returned by the semi-empirical model when no
// urban/rural classification grid is available.
var ErrMissingUrbanRural = errors.New("lossmodels: missing urban/rural grid")

// ModelError wraps a failure inside one model so it crosses the runner
// boundary as a typed, inspectable error.
type ModelError struct {
	Kind Kind
	Err  error
}

// Error implements error.
func (e *ModelError) Error() string {
	return fmt.Sprintf("lossmodels: %s failed: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ModelError) Unwrap() error { return e.Err }

// Input is the shared input handed to every model in a run.
type Input struct {
	Exposure *exposure.Result
	Economic *exposure.EconResult
	// UrbanRural is the urban/rural classification grid, required only by the
	// semi-empirical model. Cell values: 1 rural, 2 urban.
	UrbanRural *shaking.Grid
}

// Estimate is one model's probability-weighted loss estimate.
type Estimate struct {
	Kind      Kind
	Units     string
	Expected  float64
	Level     pager.AlertLevel
	G         float64
	Bins      []pager.LossBin
	ByCountry map[string]float64

	// Residential split, populated by the semi-empirical model only.
	ResidentialFatalities    float64
	NonResidentialFatalities float64
}

// Model is an opaque pure function of (exposure, parameters) -> loss estimate.
type Model interface {
	Kind() Kind
	Run(ctx context.Context, in Input) (*Estimate, error)
}
