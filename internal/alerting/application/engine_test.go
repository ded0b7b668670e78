package application

import (
	"log"
	"testing"
	"time"

	alerting "quake-pager/internal/alerting/domain"
	pager "quake-pager/internal/pager/domain"
)

var originTime = time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)

func versionWith(level pager.AlertLevel, number int) *pager.Version {
	return &pager.Version{
		EventCode:     "us2024abcd",
		Number:        number,
		OriginTime:    originTime,
		Magnitude:     7.0,
		SummaryLevel:  level,
		FatalityLevel: level,
		EconomicLevel: pager.LevelGreen,
	}
}

func subscriberWith(rule string) alerting.Subscriber {
	return alerting.Subscriber{
		ID:       "sub-1",
		Address:  "duty-officer@example.org",
		Format:   alerting.FormatLong,
		RuleText: rule,
		Rule:     alerting.MustParseRule(rule),
	}
}

func newTestEngine(t *testing.T, cutoff time.Duration) *Engine {
	t.Helper()
	engine, err := NewEngine(cutoff, log.New(logWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestDecide_StaleEventSkipsEverySubscriber(t *testing.T) {
	engine := newTestEngine(t, 24*time.Hour)
	subscribers := []alerting.Subscriber{subscriberWith("level >= green")}

	now := originTime.Add(30 * time.Hour)
	outcome := engine.Decide(versionWith(pager.LevelRed, 2), nil, subscribers, now)
	if outcome.Status != StatusStaleSkipped {
		t.Fatalf("status = %q, want stale_skipped", outcome.Status)
	}
	if len(outcome.Decisions) != 0 {
		t.Fatalf("decisions = %d, want 0", len(outcome.Decisions))
	}
}

func TestDecide_WithinCutoffEvaluatesRules(t *testing.T) {
	engine := newTestEngine(t, 24*time.Hour)
	subscribers := []alerting.Subscriber{
		subscriberWith("level >= yellow"),
		subscriberWith("level >= red"),
	}

	now := originTime.Add(2 * time.Hour)
	outcome := engine.Decide(versionWith(pager.LevelOrange, 1), nil, subscribers, now)
	if outcome.Status != StatusEvaluated {
		t.Fatalf("status = %q", outcome.Status)
	}
	if len(outcome.Decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(outcome.Decisions))
	}
	if !outcome.Decisions[0].Notify {
		t.Fatal("level >= yellow should fire for orange")
	}
	if outcome.Decisions[1].Notify {
		t.Fatal("level >= red should not fire for orange")
	}
}

func TestDecide_IsMonotoneAcrossEscalatingVersions(t *testing.T) {
	engine := newTestEngine(t, 0)
	subscribers := []alerting.Subscriber{subscriberWith("level >= orange")}
	now := originTime.Add(time.Hour)

	levels := []pager.AlertLevel{pager.LevelGreen, pager.LevelYellow, pager.LevelOrange}
	want := []bool{false, false, true}
	var previous *pager.Version
	for i, level := range levels {
		current := versionWith(level, i+1)
		outcome := engine.Decide(current, previous, subscribers, now)
		if outcome.Decisions[0].Notify != want[i] {
			t.Fatalf("version %d (%s): notify = %v, want %v", i+1, level, outcome.Decisions[0].Notify, want[i])
		}
		previous = current
	}
}

func TestDecide_FirstVersionAboveThresholdNotifies(t *testing.T) {
	engine := newTestEngine(t, 24*time.Hour)
	subscribers := []alerting.Subscriber{subscriberWith("level >= yellow")}

	outcome := engine.Decide(versionWith(pager.LevelOrange, 1), nil, subscribers, originTime.Add(time.Hour))
	if !outcome.Decisions[0].Notify {
		t.Fatal("first version above threshold must notify")
	}
}

func TestDecide_ZeroCutoffDisablesStaleCheck(t *testing.T) {
	engine := newTestEngine(t, 0)
	subscribers := []alerting.Subscriber{subscriberWith("level >= green")}

	outcome := engine.Decide(versionWith(pager.LevelGreen, 1), nil, subscribers, originTime.Add(1000*time.Hour))
	if outcome.Status != StatusEvaluated {
		t.Fatalf("status = %q, want evaluated", outcome.Status)
	}
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
