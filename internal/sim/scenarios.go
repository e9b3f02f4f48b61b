package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SimulateAllScenarios runs every named scenario concurrently and returns the
// trajectories keyed by scenario name. The first failing scenario cancels the
// rest and its error is returned.
func (s *System) SimulateAllScenarios(ctx context.Context) (map[string]*Result, error) {
	names := s.model.ScenarioNames()
	results := make([]*Result, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Simulate(Options{Scenario: name})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}
