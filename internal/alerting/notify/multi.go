package notify

import (
	"context"

	alertapp "quake-pager/internal/alerting/application"
	pager "quake-pager/internal/pager/domain"
)

// Dispatcher delivers a decision round.
type Dispatcher interface {
	Deliver(ctx context.Context, version *pager.Version, outcome alertapp.Outcome)
}

// MultiNotifier forwards decision rounds to multiple dispatchers.
type MultiNotifier struct {
	dispatchers []Dispatcher
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(dispatchers ...Dispatcher) *MultiNotifier {
	return &MultiNotifier{dispatchers: dispatchers}
}

// Deliver forwards the round to all dispatchers.
func (m *MultiNotifier) Deliver(ctx context.Context, version *pager.Version, outcome alertapp.Outcome) {
	if m == nil {
		return
	}
	for _, dispatcher := range m.dispatchers {
		if dispatcher != nil {
			dispatcher.Deliver(ctx, version, outcome)
		}
	}
}
