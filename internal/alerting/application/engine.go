package application

import (
	"errors"
	"log"
	"time"

	alerting "quake-pager/internal/alerting/domain"
	"quake-pager/internal/observability/metrics"
	pager "quake-pager/internal/pager/domain"
)

// Decision outcome statuses.
const (
	StatusEvaluated    = "evaluated"
	StatusStaleSkipped = "stale_skipped"
)

// Decision is one subscriber's verdict for a version.
type Decision struct {
	Subscriber alerting.Subscriber
	Notify     bool
}

// Outcome is the result of one decision round.
type Outcome struct {
	Status    string
	Elapsed   time.Duration
	Decisions []Decision
}

// Engine decides which subscribers must be notified about a published
// version. It never mutates store state; dispatch belongs to the notifier.
type Engine struct {
	cutoff time.Duration
	logger *log.Logger
}

// NewEngine constructs a decision engine. A zero cutoff disables the
// elapsed-time check.
func NewEngine(cutoff time.Duration, logger *log.Logger) (*Engine, error) {
	if cutoff < 0 {
		return nil, errors.New("alerting: negative cutoff")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{cutoff: cutoff, logger: logger}, nil
}

// Decide evaluates every subscriber rule against the current version. The
// previous version is passed explicitly so the whole round sees one
// consistent snapshot of history. Events older than the cutoff produce a
// stale-skip outcome with no subscriber evaluated.
func (e *Engine) Decide(current *pager.Version, previous *pager.Version, subscribers []alerting.Subscriber, now time.Time) Outcome {
	elapsed := now.UTC().Sub(current.OriginTime.UTC())
	if e.cutoff > 0 && elapsed > e.cutoff {
		metrics.IncStaleSkip()
		e.logger.Printf("alerting: skipping stale event %s v%d (elapsed %s, cutoff %s)",
			current.EventCode, current.Number, elapsed, e.cutoff)
		return Outcome{Status: StatusStaleSkipped, Elapsed: elapsed}
	}

	decisions := make([]Decision, 0, len(subscribers))
	for _, subscriber := range subscribers {
		notify := subscriber.Rule.Evaluate(current, previous)
		verdict := metrics.VerdictSkip
		if notify {
			verdict = metrics.VerdictNotify
		}
		metrics.IncAlertDecision(verdict)
		decisions = append(decisions, Decision{Subscriber: subscriber, Notify: notify})
	}
	return Outcome{Status: StatusEvaluated, Elapsed: elapsed, Decisions: decisions}
}
