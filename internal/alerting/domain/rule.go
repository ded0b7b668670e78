package alerting

import (
	"fmt"
	"strconv"
	"strings"

	pager "quake-pager/internal/pager/domain"
)

type ruleKind int

const (
	ruleLevelThreshold ruleKind = iota
	ruleLevelChanged
	ruleLevelIncreased
	ruleLevelDecreased
	ruleMagnitudeThreshold
)

// Rule is a parsed alerting predicate. Rules are evaluated against the current
// version; predicates over the previous version receive it explicitly so the
// engine controls which snapshot "previous" means.
type Rule struct {
	kind       ruleKind
	expression string
	level      pager.AlertLevel
	strict     bool
	magnitude  float64
}

// ParseRule parses a rule expression. Supported forms:
//
//	level >= orange
//	level > yellow
//	level changed
//	level increased
//	level decreased
//	magnitude >= 7.0
func ParseRule(expression string) (Rule, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(expression)))
	rule := Rule{expression: strings.Join(fields, " ")}
	switch {
	case len(fields) == 2 && fields[0] == "level":
		switch fields[1] {
		case "changed":
			rule.kind = ruleLevelChanged
		case "increased":
			rule.kind = ruleLevelIncreased
		case "decreased":
			rule.kind = ruleLevelDecreased
		default:
			return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
		}
		return rule, nil
	case len(fields) == 3 && fields[0] == "level":
		level, err := pager.ParseAlertLevel(fields[2])
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
		}
		rule.kind = ruleLevelThreshold
		rule.level = level
		switch fields[1] {
		case ">=":
		case ">":
			rule.strict = true
		default:
			return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
		}
		return rule, nil
	case len(fields) == 3 && fields[0] == "magnitude":
		magnitude, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
		}
		rule.kind = ruleMagnitudeThreshold
		rule.magnitude = magnitude
		switch fields[1] {
		case ">=":
		case ">":
			rule.strict = true
		default:
			return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
		}
		return rule, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, expression)
}

// MustParseRule parses or panics. For tests and static configuration.
func MustParseRule(expression string) Rule {
	rule, err := ParseRule(expression)
	if err != nil {
		panic(err)
	}
	return rule
}

// String returns the normalized expression.
func (r Rule) String() string { return r.expression }

// Evaluate reports whether the rule fires for the current version. A nil
// previous version is treated as the lowest possible level, so a first
// version that already satisfies a delta rule fires.
func (r Rule) Evaluate(current *pager.Version, previous *pager.Version) bool {
	if current == nil {
		return false
	}
	previousLevel := pager.LevelGreen
	if previous != nil {
		previousLevel = previous.SummaryLevel
	}
	switch r.kind {
	case ruleLevelThreshold:
		if r.strict {
			return current.SummaryLevel > r.level
		}
		return current.SummaryLevel >= r.level
	case ruleLevelChanged:
		if previous == nil {
			return current.SummaryLevel != pager.LevelGreen
		}
		return current.SummaryLevel != previousLevel
	case ruleLevelIncreased:
		return current.SummaryLevel > previousLevel
	case ruleLevelDecreased:
		return previous != nil && current.SummaryLevel < previousLevel
	case ruleMagnitudeThreshold:
		if r.strict {
			return current.Magnitude > r.magnitude
		}
		return current.Magnitude >= r.magnitude
	}
	return false
}
