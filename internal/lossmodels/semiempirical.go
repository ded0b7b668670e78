package lossmodels

import (
	"context"
	"errors"
	"fmt"
	"math"

	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// Urban/rural classification codes carried by the classification grid.
const (
	ClassRural = 1
	ClassUrban = 2
)

// SemiEmpiricalParams parameterizes the structural fatality model.
type SemiEmpiricalParams struct {
	UrbanRates       [pager.IntensityBins]float64
	RuralRates       [pager.IntensityBins]float64
	ResidentialShare float64
	G                float64
}

// SemiEmpiricalModel estimates structural fatalities cell by cell, split by
// urban/rural building stock, and decomposes the result into residential and
// non-residential components.
type SemiEmpiricalModel struct {
	params SemiEmpiricalParams
}

// NewSemiEmpiricalModel constructs the model.
func NewSemiEmpiricalModel(params SemiEmpiricalParams) (*SemiEmpiricalModel, error) {
	if params.ResidentialShare <= 0 || params.ResidentialShare > 1 {
		return nil, fmt.Errorf("lossmodels: residential share %f out of range", params.ResidentialShare)
	}
	if params.G <= 0 {
		return nil, errors.New("lossmodels: non-positive semi-empirical g value")
	}
	return &SemiEmpiricalModel{params: params}, nil
}

// Kind implements Model.
func (m *SemiEmpiricalModel) Kind() Kind { return KindSemiEmpiricalFatality }

// Run implements Model. Missing urban/rural classification is a typed failure
// that must not prevent the other models from completing.
func (m *SemiEmpiricalModel) Run(ctx context.Context, in Input) (*Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ModelError{Kind: m.Kind(), Err: err}
	}
	if in.Exposure == nil || in.Exposure.Shake == nil || in.Exposure.Population == nil {
		return nil, &ModelError{Kind: m.Kind(), Err: errors.New("nil exposure result")}
	}
	if in.UrbanRural == nil {
		return nil, &ModelError{Kind: m.Kind(), Err: ErrMissingUrbanRural}
	}
	classes, err := shaking.Resample(in.UrbanRural, in.Exposure.Shake.MMI)
	if err != nil {
		return nil, &ModelError{Kind: m.Kind(), Err: err}
	}

	mmiField := in.Exposure.Shake.MMI
	total := 0.0
	for i, mmi := range mmiField.Values {
		if math.IsNaN(mmi) || math.IsInf(mmi, 0) {
			continue
		}
		people := in.Exposure.Population.Values[i]
		if people <= 0 {
			continue
		}
		bin := mmiBin(mmi)
		if bin < 0 {
			continue
		}
		rate := m.params.RuralRates[bin]
		if int(classes.Values[i]) == ClassUrban {
			rate = m.params.UrbanRates[bin]
		}
		total += people * rate
	}

	residential := total * m.params.ResidentialShare
	return &Estimate{
		Kind:                     m.Kind(),
		Units:                    "fatalities",
		Expected:                 total,
		Level:                    fatalityAlertLevel(total),
		G:                        m.params.G,
		Bins:                     lossBins(total, m.params.G, 1),
		ResidentialFatalities:    residential,
		NonResidentialFatalities: total - residential,
	}, nil
}

func mmiBin(mmi float64) int {
	bin := int(math.Round(mmi))
	if bin < 1 {
		return -1
	}
	if bin > pager.IntensityBins {
		bin = pager.IntensityBins
	}
	return bin - 1
}
