package pager

import (
	"errors"
	"fmt"
	"time"
)

// IntensityBins is the number of MMI bins carried by exposure tables (MMI 1..10).
const IntensityBins = 10

// MinExposurePopulation is the minimum exposed population required to declare
// the maximum intensity at a given MMI level.
const MinExposurePopulation = 1000

// Version is one published loss/alert estimate for an event. Versions are
// append-only; they are never mutated after being stored.
type Version struct {
	EventCode string `json:"event_code"`
	Number    int    `json:"number"`

	OriginTime  time.Time `json:"origin_time"`
	ProcessTime time.Time `json:"process_time"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	DepthKM     float64   `json:"depth_km"`
	Magnitude   float64   `json:"magnitude"`
	Location    string    `json:"location"`
	Tsunami     bool      `json:"tsunami"`

	SummaryLevel  AlertLevel `json:"summary_level"`
	FatalityLevel AlertLevel `json:"fatality_level"`
	EconomicLevel AlertLevel `json:"economic_level"`

	MaxIntensity           int     `json:"max_intensity"`
	MaxIntensityPopulation float64 `json:"max_intensity_population"`
	Elapsed                string  `json:"elapsed"`

	PopulationExposure ExposureTable `json:"population_exposure"`
	EconomicExposure   ExposureTable `json:"economic_exposure"`

	FatalityBins []LossBin `json:"fatality_bins,omitempty"`
	EconomicBins []LossBin `json:"economic_bins,omitempty"`

	ModelResults ModelResults      `json:"model_results"`
	Cities       []CityExposure    `json:"cities,omitempty"`
	Historical   []HistoricalEvent `json:"historical_events,omitempty"`
	Comments     Comments          `json:"comments"`
}

// ExposureTable maps intensity bins to exposed value, aggregated and per country.
// Countries are kept sorted by country code so documents are deterministic.
type ExposureTable struct {
	Total     [IntensityBins]float64 `json:"total"`
	Countries []CountryExposure      `json:"countries,omitempty"`
}

// CountryExposure is one country's exposure by intensity bin.
type CountryExposure struct {
	CountryCode string                 `json:"country_code"`
	Exposure    [IntensityBins]float64 `json:"exposure"`
}

// LossBin is one magnitude-of-loss bin with its probability mass.
type LossBin struct {
	Color       string  `json:"color"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Probability float64 `json:"probability"`
}

// ModelResults collects per-model outputs. A nil entry means the model failed
// for this version and its narrative comment is omitted.
type ModelResults struct {
	EmpiricalFatality *FatalityResult      `json:"empirical_fatality,omitempty"`
	EmpiricalEconomic *EconomicResult      `json:"empirical_economic,omitempty"`
	SemiEmpirical     *SemiEmpiricalResult `json:"semi_empirical,omitempty"`
}

// FatalityResult holds the empirical fatality model output.
type FatalityResult struct {
	TotalFatalities   float64       `json:"total_fatalities"`
	CountryFatalities []CountryLoss `json:"country_fatalities,omitempty"`
}

// EconomicResult holds the empirical economic model output, in US dollars.
type EconomicResult struct {
	TotalDollars   float64       `json:"total_dollars"`
	CountryDollars []CountryLoss `json:"country_dollars,omitempty"`
}

// SemiEmpiricalResult decomposes structural fatalities by building occupancy.
type SemiEmpiricalResult struct {
	Fatalities               float64 `json:"fatalities"`
	ResidentialFatalities    float64 `json:"residential_fatalities"`
	NonResidentialFatalities float64 `json:"non_residential_fatalities"`
}

// CountryLoss is a per-country expected loss.
type CountryLoss struct {
	CountryCode string  `json:"country_code"`
	Loss        float64 `json:"loss"`
}

// CityExposure is one city row of the city intensity table.
type CityExposure struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	MMI         float64 `json:"mmi"`
	Population  float64 `json:"population"`
}

// HistoricalEvent is a representative past earthquake near the epicenter.
type HistoricalEvent struct {
	EventID       string    `json:"event_id"`
	Time          time.Time `json:"time"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	DepthKM       float64   `json:"depth_km"`
	Magnitude     float64   `json:"magnitude"`
	MaxIntensity  int       `json:"max_intensity"`
	ShakingDeaths float64   `json:"shaking_deaths"`
	DistanceKM    float64   `json:"distance_km"`
}

// Comments carries the generated narrative comments. Slots for failed models
// stay empty rather than being fabricated.
type Comments struct {
	Impact1    string `json:"impact1,omitempty"`
	Impact2    string `json:"impact2,omitempty"`
	Structure  string `json:"structure,omitempty"`
	Historical string `json:"historical,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
}

// Validate checks version invariants. The version number is checked only when
// assigned (stored versions must be positive; a freshly assembled document may
// still carry zero until the store numbers it).
func (v *Version) Validate() error {
	if v == nil {
		return errors.New("pager: nil version")
	}
	if v.EventCode == "" {
		return errors.New("pager: version missing event code")
	}
	if v.Number < 0 {
		return fmt.Errorf("pager: negative version number %d", v.Number)
	}
	if v.OriginTime.IsZero() {
		return errors.New("pager: version missing origin time")
	}
	if !v.SummaryLevel.Valid() || !v.FatalityLevel.Valid() || !v.EconomicLevel.Valid() {
		return errors.New("pager: version carries invalid alert level")
	}
	if v.SummaryLevel != MaxAlertLevel(v.FatalityLevel, v.EconomicLevel) {
		return fmt.Errorf("pager: summary level %s is not max(%s, %s)",
			v.SummaryLevel, v.FatalityLevel, v.EconomicLevel)
	}
	if v.MaxIntensity < 0 || v.MaxIntensity > IntensityBins {
		return fmt.Errorf("pager: max intensity %d out of range", v.MaxIntensity)
	}
	return nil
}
