package alerting

import (
	"errors"
	"fmt"
	"time"
)

// Notification formats.
const (
	FormatLong  = "long"
	FormatShort = "short"
)

// Subscriber is an address with a delivery format and an alerting rule.
type Subscriber struct {
	ID        string
	Name      string
	Address   string
	Format    string
	RuleText  string
	Rule      Rule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks subscriber fields and parses the rule when needed.
func (s *Subscriber) Validate() error {
	if s == nil {
		return errors.New("alerting: nil subscriber")
	}
	if s.Address == "" {
		return errors.New("alerting: subscriber missing address")
	}
	switch s.Format {
	case FormatLong, FormatShort:
	default:
		return fmt.Errorf("alerting: unknown format %q", s.Format)
	}
	if s.RuleText == "" {
		return errors.New("alerting: subscriber missing rule")
	}
	if s.Rule == (Rule{}) {
		rule, err := ParseRule(s.RuleText)
		if err != nil {
			return err
		}
		s.Rule = rule
	}
	return nil
}
