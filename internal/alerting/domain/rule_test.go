package alerting

import (
	"errors"
	"testing"
	"time"

	pager "quake-pager/internal/pager/domain"
)

func versionAt(level pager.AlertLevel, magnitude float64) *pager.Version {
	return &pager.Version{
		EventCode:     "us2024abcd",
		OriginTime:    time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC),
		Magnitude:     magnitude,
		SummaryLevel:  level,
		FatalityLevel: level,
		EconomicLevel: pager.LevelGreen,
	}
}

func TestParseRule_Rejections(t *testing.T) {
	bad := []string{
		"",
		"level",
		"level << orange",
		"level >= purple",
		"magnitude >= seven",
		"depth >= 10",
	}
	for _, expression := range bad {
		if _, err := ParseRule(expression); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("ParseRule(%q) error = %v, want ErrInvalidRule", expression, err)
		}
	}
}

func TestParseRule_NormalizesExpression(t *testing.T) {
	rule, err := ParseRule("  Level   >=  Orange ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rule.String() != "level >= orange" {
		t.Fatalf("normalized = %q", rule.String())
	}
}

func TestRule_LevelThreshold(t *testing.T) {
	rule := MustParseRule("level >= orange")
	if rule.Evaluate(versionAt(pager.LevelYellow, 6.0), nil) {
		t.Fatal("yellow should not satisfy >= orange")
	}
	if !rule.Evaluate(versionAt(pager.LevelOrange, 6.0), nil) {
		t.Fatal("orange should satisfy >= orange")
	}
	if !rule.Evaluate(versionAt(pager.LevelRed, 6.0), nil) {
		t.Fatal("red should satisfy >= orange")
	}

	strict := MustParseRule("level > orange")
	if strict.Evaluate(versionAt(pager.LevelOrange, 6.0), nil) {
		t.Fatal("orange should not satisfy > orange")
	}
}

func TestRule_DeltaRulesAgainstPrevious(t *testing.T) {
	changed := MustParseRule("level changed")
	increased := MustParseRule("level increased")
	decreased := MustParseRule("level decreased")

	previous := versionAt(pager.LevelYellow, 6.0)
	current := versionAt(pager.LevelOrange, 6.0)

	if !changed.Evaluate(current, previous) || !increased.Evaluate(current, previous) {
		t.Fatal("yellow to orange is a change and an increase")
	}
	if decreased.Evaluate(current, previous) {
		t.Fatal("yellow to orange is not a decrease")
	}

	downgraded := versionAt(pager.LevelGreen, 6.0)
	if !decreased.Evaluate(downgraded, previous) {
		t.Fatal("yellow to green is a decrease")
	}
}

func TestRule_FirstVersionTreatsPreviousAsLowest(t *testing.T) {
	increased := MustParseRule("level increased")
	if !increased.Evaluate(versionAt(pager.LevelYellow, 6.0), nil) {
		t.Fatal("first yellow version should count as an increase")
	}
	if increased.Evaluate(versionAt(pager.LevelGreen, 6.0), nil) {
		t.Fatal("first green version is not an increase")
	}

	decreased := MustParseRule("level decreased")
	if decreased.Evaluate(versionAt(pager.LevelGreen, 6.0), nil) {
		t.Fatal("a first version can never be a decrease")
	}
}

func TestRule_MagnitudeThreshold(t *testing.T) {
	rule := MustParseRule("magnitude >= 7.0")
	if rule.Evaluate(versionAt(pager.LevelGreen, 6.9), nil) {
		t.Fatal("6.9 should not satisfy >= 7.0")
	}
	if !rule.Evaluate(versionAt(pager.LevelGreen, 7.0), nil) {
		t.Fatal("7.0 should satisfy >= 7.0")
	}
}

func TestSubscriber_ValidateParsesRule(t *testing.T) {
	subscriber := &Subscriber{
		Address:  "duty-officer@example.org",
		Format:   FormatLong,
		RuleText: "level >= yellow",
	}
	if err := subscriber.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !subscriber.Rule.Evaluate(versionAt(pager.LevelYellow, 6.0), nil) {
		t.Fatal("parsed rule should fire for yellow")
	}

	subscriber = &Subscriber{Address: "x@example.org", Format: "pigeon", RuleText: "level >= yellow"}
	if err := subscriber.Validate(); err == nil {
		t.Fatal("unknown format should fail validation")
	}
}
