package lossmodels

import (
	"math"

	pager "quake-pager/internal/pager/domain"
)

// Magnitude-of-loss bin edges shared by both empirical models. Fatality bins
// use the edges directly; economic bins scale them by a million dollars.
var binEdges = []float64{0, 1, 10, 100, 1000, 10000, 100000, 10000000}

var binColors = []string{"green", "yellow", "yellow", "orange", "red", "red", "red"}

// lossBins spreads probability mass over the loss bins using a lognormal
// distribution with median expected and shape g.
func lossBins(expected, g, scale float64) []pager.LossBin {
	if scale <= 0 {
		scale = 1
	}
	bins := make([]pager.LossBin, 0, len(binEdges)-1)
	for i := 0; i < len(binEdges)-1; i++ {
		lo := binEdges[i] * scale
		hi := binEdges[i+1] * scale
		bins = append(bins, pager.LossBin{
			Color:       binColors[i],
			Min:         lo,
			Max:         hi,
			Probability: binProbability(expected, g, lo, hi),
		})
	}
	return bins
}

func binProbability(expected, g, lo, hi float64) float64 {
	if expected <= 0 {
		// Degenerate distribution: all mass in the lowest bin.
		if lo == 0 {
			return 1
		}
		return 0
	}
	if g <= 0 {
		g = 1
	}
	return logNormalCDF(hi, expected, g) - logNormalCDF(lo, expected, g)
}

func logNormalCDF(x, median, shape float64) float64 {
	if x <= 0 {
		return 0
	}
	z := (math.Log(x) - math.Log(median)) / shape
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// fatalityAlertLevel maps expected shaking deaths to an alert level.
func fatalityAlertLevel(expected float64) pager.AlertLevel {
	switch {
	case expected < 1:
		return pager.LevelGreen
	case expected < 100:
		return pager.LevelYellow
	case expected < 1000:
		return pager.LevelOrange
	default:
		return pager.LevelRed
	}
}

// economicAlertLevel maps expected dollar losses to an alert level.
func economicAlertLevel(expected float64) pager.AlertLevel {
	switch {
	case expected < 1e6:
		return pager.LevelGreen
	case expected < 1e8:
		return pager.LevelYellow
	case expected < 1e9:
		return pager.LevelOrange
	default:
		return pager.LevelRed
	}
}
