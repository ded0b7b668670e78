package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrMissingDataset is returned when no candidate dataset can be selected or
// the selected file is absent from storage.
var ErrMissingDataset = errors.New("catalog: missing dataset")

// DatasetRef points at one dated auxiliary grid.
type DatasetRef struct {
	Year int    `yaml:"year"`
	Path string `yaml:"path"`
}

// Catalog lists the auxiliary datasets shared by all runs. Population grids
// are dated; the country and urban/rural grids are time-invariant.
type Catalog struct {
	Population []DatasetRef `yaml:"population"`
	CountryGrid string      `yaml:"country_grid"`
	UrbanRural  string      `yaml:"urban_rural_grid"`
}

// ExistsFunc reports whether a path exists on the storage medium.
type ExistsFunc func(path string) bool

// Selector picks the best-matching dated dataset for an event year.
type Selector struct {
	exists ExistsFunc
}

// SelectorOption customizes the selector.
type SelectorOption func(*Selector)

// WithExistsFunc overrides the storage existence check.
func WithExistsFunc(exists ExistsFunc) SelectorOption {
	return func(s *Selector) {
		if exists != nil {
			s.exists = exists
		}
	}
}

// NewSelector constructs a selector.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{exists: fileExists}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the path of the candidate whose year is numerically closest
// to targetYear. Ties resolve to the earliest-listed candidate. It fails with
// ErrMissingDataset when candidates is empty or the chosen path is absent.
func (s *Selector) Select(candidates []DatasetRef, targetYear int) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: empty candidate list", ErrMissingDataset)
	}
	best := candidates[0]
	bestDist := abs(candidates[0].Year - targetYear)
	for _, candidate := range candidates[1:] {
		if dist := abs(candidate.Year - targetYear); dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	if !s.exists(best.Path) {
		return "", fmt.Errorf("%w: %s", ErrMissingDataset, best.Path)
	}
	return best.Path, nil
}

// Verify checks that every path the catalog references exists, so a run can
// fail fast before any computation starts.
func (s *Selector) Verify(cat Catalog) error {
	for _, ref := range cat.Population {
		if !s.exists(ref.Path) {
			return fmt.Errorf("%w: population %d: %s", ErrMissingDataset, ref.Year, ref.Path)
		}
	}
	if cat.CountryGrid == "" || !s.exists(cat.CountryGrid) {
		return fmt.Errorf("%w: country grid: %s", ErrMissingDataset, cat.CountryGrid)
	}
	if cat.UrbanRural != "" && !s.exists(cat.UrbanRural) {
		return fmt.Errorf("%w: urban/rural grid: %s", ErrMissingDataset, cat.UrbanRural)
	}
	return nil
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
