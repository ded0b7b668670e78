package lossmodels

import (
	"context"
	"errors"
	"sync"

	"quake-pager/internal/observability/metrics"
)

// Outcome is one model's success-or-failure result.
type Outcome struct {
	Kind     Kind
	Estimate *Estimate
	Err      error
}

// Failed returns true when the model did not produce an estimate.
func (o Outcome) Failed() bool { return o.Err != nil || o.Estimate == nil }

// Runner executes a fixed set of models against a shared input. Models are
// independent: they run concurrently and one failure never aborts the rest.
type Runner struct {
	models []Model
}

// NewRunner constructs a runner.
func NewRunner(models ...Model) (*Runner, error) {
	if len(models) == 0 {
		return nil, errors.New("lossmodels: no models configured")
	}
	for _, model := range models {
		if model == nil {
			return nil, errors.New("lossmodels: nil model")
		}
	}
	return &Runner{models: models}, nil
}

// RunAll runs every model and waits for all of them. The returned outcomes
// are ordered like the configured models.
func (r *Runner) RunAll(ctx context.Context, in Input) []Outcome {
	outcomes := make([]Outcome, len(r.models))
	var wg sync.WaitGroup
	for i, model := range r.models {
		wg.Add(1)
		go func(i int, model Model) {
			defer wg.Done()
			estimate, err := model.Run(ctx, in)
			outcomes[i] = Outcome{Kind: model.Kind(), Estimate: estimate, Err: err}
			result := metrics.ResultSuccess
			if err != nil {
				result = metrics.ResultError
			}
			metrics.IncModelRun(string(model.Kind()), result)
		}(i, model)
	}
	wg.Wait()
	return outcomes
}
