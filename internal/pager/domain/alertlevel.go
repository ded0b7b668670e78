package pager

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AlertLevel is the ordered severity category assigned to a hazard estimate.
type AlertLevel int

const (
	LevelGreen AlertLevel = iota
	LevelYellow
	LevelOrange
	LevelRed
)

// String returns the canonical lowercase name of the level.
func (l AlertLevel) String() string {
	switch l {
	case LevelGreen:
		return "green"
	case LevelYellow:
		return "yellow"
	case LevelOrange:
		return "orange"
	case LevelRed:
		return "red"
	default:
		return fmt.Sprintf("alertlevel(%d)", int(l))
	}
}

// Valid returns true when the level is one of the four known categories.
func (l AlertLevel) Valid() bool {
	return l >= LevelGreen && l <= LevelRed
}

// ParseAlertLevel converts a level name to an AlertLevel.
func ParseAlertLevel(value string) (AlertLevel, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "green":
		return LevelGreen, nil
	case "yellow":
		return LevelYellow, nil
	case "orange":
		return LevelOrange, nil
	case "red":
		return LevelRed, nil
	default:
		return LevelGreen, fmt.Errorf("pager: unknown alert level %q", value)
	}
}

// MaxAlertLevel returns the more severe of two levels.
func MaxAlertLevel(a, b AlertLevel) AlertLevel {
	if a > b {
		return a
	}
	return b
}

// MarshalJSON encodes the level as its string name.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("pager: invalid alert level %d", int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level from its string name.
func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseAlertLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
