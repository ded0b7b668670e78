package catalog

import (
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	pager "quake-pager/internal/pager/domain"
)

// SearchRadiusKM is the distance around an epicenter searched for comparable
// historical earthquakes.
const SearchRadiusKM = 400

// HistoricalRecord is one cataloged past earthquake.
type HistoricalRecord struct {
	EventID       string    `yaml:"event_id"`
	Time          time.Time `yaml:"time"`
	Lat           float64   `yaml:"lat"`
	Lon           float64   `yaml:"lon"`
	DepthKM       float64   `yaml:"depth_km"`
	Magnitude     float64   `yaml:"magnitude"`
	MaxIntensity  int       `yaml:"max_intensity"`
	ShakingDeaths float64   `yaml:"shaking_deaths"`
}

// HistoricalCatalog answers "which past earthquakes resemble this one".
type HistoricalCatalog struct {
	records []HistoricalRecord
}

// NewHistoricalCatalog wraps an in-memory record set.
func NewHistoricalCatalog(records []HistoricalRecord) *HistoricalCatalog {
	return &HistoricalCatalog{records: records}
}

// LoadHistoricalCatalog reads a YAML catalog file.
func LoadHistoricalCatalog(path string) (*HistoricalCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []HistoricalRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return &HistoricalCatalog{records: records}, nil
}

// Nearby returns up to limit events within SearchRadiusKM of the epicenter,
// most deadly first. Distance breaks ties so output order is deterministic.
func (c *HistoricalCatalog) Nearby(lat, lon float64, limit int) []pager.HistoricalEvent {
	if c == nil || limit <= 0 {
		return nil
	}
	var matches []pager.HistoricalEvent
	for _, record := range c.records {
		dist := Haversine(lat, lon, record.Lat, record.Lon)
		if dist > SearchRadiusKM {
			continue
		}
		matches = append(matches, pager.HistoricalEvent{
			EventID:       record.EventID,
			Time:          record.Time,
			Lat:           record.Lat,
			Lon:           record.Lon,
			DepthKM:       record.DepthKM,
			Magnitude:     record.Magnitude,
			MaxIntensity:  record.MaxIntensity,
			ShakingDeaths: record.ShakingDeaths,
			DistanceKM:    dist,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ShakingDeaths != matches[j].ShakingDeaths {
			return matches[i].ShakingDeaths > matches[j].ShakingDeaths
		}
		return matches[i].DistanceKM < matches[j].DistanceKM
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
