package application

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"quake-pager/internal/exposure"
	"quake-pager/internal/lossmodels"
	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// AssembleInput collects everything a version document is built from. The
// aggregator only packages; it never recomputes.
type AssembleInput struct {
	EventCode   string
	Header      shaking.Header
	Exposure    *exposure.Result
	Economic    *exposure.EconResult
	Outcomes    []lossmodels.Outcome
	Historical  []pager.HistoricalEvent
	Cities      []pager.CityExposure
	ProcessTime time.Time
}

// Aggregator merges exposure and model outputs into one immutable version
// document.
type Aggregator struct {
	clock Clock
}

// AggregatorOption customizes the aggregator.
type AggregatorOption func(*Aggregator)

// WithClock assigns a clock.
func WithClock(clock Clock) AggregatorOption {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewAggregator constructs an aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{clock: systemClock{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the version document. Failed model outcomes degrade the
// document (their comments are omitted); when every model failed assembly
// fails with ErrInsufficientResults. The version number stays zero until the
// store assigns it.
func (a *Aggregator) Assemble(in AssembleInput) (*pager.Version, error) {
	if in.EventCode == "" {
		return nil, errors.New("pager: assemble requires an event code")
	}
	if err := in.Header.Validate(); err != nil {
		return nil, err
	}
	if in.Exposure == nil {
		return nil, errors.New("pager: assemble requires an exposure result")
	}
	if len(in.Outcomes) == 0 {
		return nil, pager.ErrInsufficientResults
	}
	allFailed := true
	for _, outcome := range in.Outcomes {
		if !outcome.Failed() {
			allFailed = false
			break
		}
	}
	if allFailed {
		return nil, pager.ErrInsufficientResults
	}

	processTime := in.ProcessTime
	if processTime.IsZero() {
		processTime = a.clock.Now()
	}
	processTime = processTime.UTC()

	fat := findEstimate(in.Outcomes, lossmodels.KindEmpiricalFatality)
	eco := findEstimate(in.Outcomes, lossmodels.KindEmpiricalEconomic)
	semi := findEstimate(in.Outcomes, lossmodels.KindSemiEmpiricalFatality)

	fatLevel := pager.LevelGreen
	if fat != nil {
		fatLevel = fat.Level
	}
	ecoLevel := pager.LevelGreen
	if eco != nil {
		ecoLevel = eco.Level
	}

	maxIntensity, maxPopulation := in.Exposure.MaxIntensity(pager.MinExposurePopulation)

	version := &pager.Version{
		EventCode:              in.EventCode,
		OriginTime:             in.Header.OriginTime.UTC(),
		ProcessTime:            processTime,
		Lat:                    in.Header.Lat,
		Lon:                    in.Header.Lon,
		DepthKM:                in.Header.DepthKM,
		Magnitude:              in.Header.Magnitude,
		Location:               in.Header.Location,
		Tsunami:                in.Header.Tsunami,
		SummaryLevel:           pager.MaxAlertLevel(fatLevel, ecoLevel),
		FatalityLevel:          fatLevel,
		EconomicLevel:          ecoLevel,
		MaxIntensity:           maxIntensity,
		MaxIntensityPopulation: maxPopulation,
		Elapsed:                formatElapsed(processTime.Sub(in.Header.OriginTime.UTC())),
		PopulationExposure:     exposureTable(in.Exposure.Total, in.Exposure.ByCountry),
		Cities:                 append([]pager.CityExposure(nil), in.Cities...),
		Historical:             append([]pager.HistoricalEvent(nil), in.Historical...),
	}
	if in.Economic != nil {
		version.EconomicExposure = exposureTable(in.Economic.Total, in.Economic.ByCountry)
	}

	if fat != nil {
		version.FatalityBins = append([]pager.LossBin(nil), fat.Bins...)
		version.ModelResults.EmpiricalFatality = &pager.FatalityResult{
			TotalFatalities:   fat.Expected,
			CountryFatalities: countryLosses(fat.ByCountry),
		}
	}
	if eco != nil {
		version.EconomicBins = append([]pager.LossBin(nil), eco.Bins...)
		version.ModelResults.EmpiricalEconomic = &pager.EconomicResult{
			TotalDollars:   eco.Expected,
			CountryDollars: countryLosses(eco.ByCountry),
		}
	}
	if semi != nil {
		version.ModelResults.SemiEmpirical = &pager.SemiEmpiricalResult{
			Fatalities:               semi.Expected,
			ResidentialFatalities:    semi.ResidentialFatalities,
			NonResidentialFatalities: semi.NonResidentialFatalities,
		}
	}

	version.Comments = buildComments(fat, eco, semi, version)

	if err := version.Validate(); err != nil {
		return nil, err
	}
	return version, nil
}

func findEstimate(outcomes []lossmodels.Outcome, kind lossmodels.Kind) *lossmodels.Estimate {
	for _, outcome := range outcomes {
		if outcome.Kind == kind && !outcome.Failed() {
			return outcome.Estimate
		}
	}
	return nil
}

func exposureTable(total [pager.IntensityBins]float64, byCountry map[string][pager.IntensityBins]float64) pager.ExposureTable {
	table := pager.ExposureTable{Total: total}
	codes := make([]string, 0, len(byCountry))
	for ccode := range byCountry {
		codes = append(codes, ccode)
	}
	sort.Strings(codes)
	for _, ccode := range codes {
		table.Countries = append(table.Countries, pager.CountryExposure{
			CountryCode: ccode,
			Exposure:    byCountry[ccode],
		})
	}
	return table
}

func countryLosses(byCountry map[string]float64) []pager.CountryLoss {
	codes := make([]string, 0, len(byCountry))
	for ccode := range byCountry {
		codes = append(codes, ccode)
	}
	sort.Strings(codes)
	losses := make([]pager.CountryLoss, 0, len(codes))
	for _, ccode := range codes {
		losses = append(losses, pager.CountryLoss{CountryCode: ccode, Loss: byCountry[ccode]})
	}
	return losses
}

func buildComments(fat, eco *lossmodels.Estimate, semi *lossmodels.Estimate, version *pager.Version) pager.Comments {
	comments := pager.Comments{}

	fatComment := ""
	if fat != nil {
		fatComment = fatalityImpactComment(fat.Level)
	}
	ecoComment := ""
	if eco != nil {
		ecoComment = economicImpactComment(eco.Level)
	}
	// The first impact comment belongs to the more impactful hazard; when the
	// levels match, the second comment stays empty.
	switch {
	case fat != nil && eco != nil && fat.Level >= eco.Level:
		comments.Impact1 = fatComment
		if eco.Level != fat.Level {
			comments.Impact2 = ecoComment
		}
	case fat != nil && eco != nil:
		comments.Impact1 = ecoComment
		comments.Impact2 = fatComment
	case fat != nil:
		comments.Impact1 = fatComment
	case eco != nil:
		comments.Impact1 = ecoComment
	}

	if semi != nil && semi.Expected > 0 {
		share := 0.0
		if semi.Expected > 0 {
			share = semi.ResidentialFatalities / semi.Expected * 100
		}
		comments.Structure = fmt.Sprintf(
			"Overall, the population in this region resides in structures vulnerable to earthquake shaking; an estimated %.0f%% of structural fatalities are expected in residential buildings.",
			share)
	}

	if len(version.Historical) > 0 {
		top := version.Historical[0]
		comments.Historical = fmt.Sprintf(
			"In %d, a magnitude %.1f earthquake %d km away caused an estimated %.0f shaking fatalities.",
			top.Time.Year(), top.Magnitude, int(top.DistanceKM), top.ShakingDeaths)
	}

	if version.Tsunami {
		comments.Secondary = "Tsunami waves may have been generated by this earthquake; losses from tsunami inundation are not included in this estimate."
	}
	return comments
}

func fatalityImpactComment(level pager.AlertLevel) string {
	switch level {
	case pager.LevelRed:
		return "Red alert for shaking-related fatalities. High casualties are probable and the disaster is likely widespread."
	case pager.LevelOrange:
		return "Orange alert for shaking-related fatalities. Significant casualties are likely."
	case pager.LevelYellow:
		return "Yellow alert for shaking-related fatalities. Some casualties are possible."
	default:
		return "Green alert for shaking-related fatalities. There is a low likelihood of casualties."
	}
}

func economicImpactComment(level pager.AlertLevel) string {
	switch level {
	case pager.LevelRed:
		return "Red alert for economic losses. Extensive damage is probable and the disaster is likely widespread."
	case pager.LevelOrange:
		return "Orange alert for economic losses. Significant damage is likely."
	case pager.LevelYellow:
		return "Yellow alert for economic losses. Some damage is possible."
	default:
		return "Green alert for economic losses. There is a low likelihood of damage."
	}
}

func formatElapsed(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	if hours == 1 {
		return fmt.Sprintf("1 hour, %d minutes", minutes)
	}
	return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
