package events

import "time"

// VersionPublished is emitted after a version document is durably appended to
// an event's history.
type VersionPublished struct {
	EventCode     string    `json:"event_code"`
	Number        int       `json:"number"`
	SummaryLevel  string    `json:"summary_level"`
	FatalityLevel string    `json:"fatality_level"`
	EconomicLevel string    `json:"economic_level"`
	Magnitude     float64   `json:"magnitude"`
	MaxIntensity  int       `json:"max_intensity"`
	OriginTime    time.Time `json:"origin_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}
