package catalog

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	pager "quake-pager/internal/pager/domain"
	"quake-pager/internal/shaking"
)

// CityRecord is one cataloged populated place.
type CityRecord struct {
	Name        string  `yaml:"name"`
	CountryCode string  `yaml:"country_code"`
	Lat         float64 `yaml:"lat"`
	Lon         float64 `yaml:"lon"`
	Population  float64 `yaml:"population"`
}

// CityCatalog resolves which cities felt an earthquake.
type CityCatalog struct {
	records []CityRecord
}

// NewCityCatalog wraps an in-memory record set.
func NewCityCatalog(records []CityRecord) *CityCatalog {
	return &CityCatalog{records: records}
}

// LoadCityCatalog reads a YAML city file.
func LoadCityCatalog(path string) (*CityCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []CityRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return &CityCatalog{records: records}, nil
}

// Exposed returns up to limit cities inside the intensity grid sorted by
// sampled MMI, then population. Cities below MMI 1 are dropped.
func (c *CityCatalog) Exposed(mmi *shaking.Grid, limit int) []pager.CityExposure {
	if c == nil || mmi == nil || limit <= 0 {
		return nil
	}
	var exposed []pager.CityExposure
	for _, record := range c.records {
		value, ok := mmi.SampleAt(record.Lon, record.Lat)
		if !ok || value < 1 {
			continue
		}
		exposed = append(exposed, pager.CityExposure{
			Name:        record.Name,
			CountryCode: record.CountryCode,
			Lat:         record.Lat,
			Lon:         record.Lon,
			MMI:         value,
			Population:  record.Population,
		})
	}
	sort.Slice(exposed, func(i, j int) bool {
		if exposed[i].MMI != exposed[j].MMI {
			return exposed[i].MMI > exposed[j].MMI
		}
		return exposed[i].Population > exposed[j].Population
	})
	if len(exposed) > limit {
		exposed = exposed[:limit]
	}
	return exposed
}
