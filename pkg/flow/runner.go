package flow

import (
	"context"
	"fmt"

	"github.com/meridian-network/node/pkg/errkind"
	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/metrics"
	"github.com/meridian-network/node/pkg/types"
)

// OpHandler executes one Op kind against a Flow's accumulated state,
// returning the value to record in its OpResult.
type OpHandler func(ctx context.Context, f *types.Flow, op types.Op) (any, error)

// Store is the subset of the Flow Store the Runner needs: persist a
// flow's results after each completed op, so a restart mid-flow
// (scenario 4) resumes from the last recorded result instead of
// redoing finished work.
type Store interface {
	Save(flow types.Flow) error
}

// Runner executes a Flow's ops in dependency order, one at a time.
// An op whose dependency failed is marked errored without running its
// handler, but the runner keeps walking the rest of the order so
// independent branches still execute and wrap-up still runs.
type Runner struct {
	handlers map[string]OpHandler
	store    Store
}

// NewRunner builds a Runner dispatching each op kind to the handler
// registered for it.
func NewRunner(store Store, handlers map[string]OpHandler) *Runner {
	return &Runner{handlers: handlers, store: store}
}

// Run executes every op in f.Ops not already recorded in f.Results,
// in topological order, persisting f after each op. It returns once
// every op has a result, or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, f *types.Flow) error {
	logger := log.WithFlowID(f.ID)

	order, err := topologicalOrder(f.Ops)
	if err != nil {
		return errkind.New(errkind.OpFailed, err)
	}

	byID := make(map[string]types.Op, len(f.Ops))
	for _, op := range f.Ops {
		byID[op.ID] = op
	}

	if f.Results == nil {
		f.Results = map[string]types.OpResult{}
	}

	var firstFailure error

	for _, opID := range order {
		if _, done := f.Results[opID]; done {
			continue
		}

		op := byID[opID]

		select {
		case <-ctx.Done():
			return errkind.New(errkind.Cancelled, ctx.Err())
		default:
		}

		if cause, blocked := failedDep(op, f.Results); blocked {
			f.Results[opID] = types.OpResult{Status: types.OpError, Cause: cause}
			if err := r.store.Save(*f); err != nil {
				return fmt.Errorf("flow runner: save after skip %s: %w", opID, err)
			}
			continue
		}

		handler, ok := r.handlers[op.Kind]
		if !ok {
			return errkind.Newf(errkind.Misconfiguration, "flow runner: no handler registered for op kind %q", op.Kind)
		}

		timer := metrics.NewTimer()
		value, err := handler(ctx, f, op)
		timer.ObserveDurationVec(metrics.FlowOpDuration, op.Kind)

		if err != nil {
			logger.Error().Err(err).Str("op", opID).Msg("op failed")
			f.Results[opID] = types.OpResult{Status: types.OpError, Cause: err.Error()}
			if firstFailure == nil {
				firstFailure = errkind.New(errkind.OpFailed, err)
			}
		} else {
			f.Results[opID] = types.OpResult{Status: types.OpOK, Value: value}
		}

		if saveErr := r.store.Save(*f); saveErr != nil {
			return fmt.Errorf("flow runner: save after %s: %w", opID, saveErr)
		}
	}

	return firstFailure
}

// failedDep reports whether op depends, directly or indirectly, on a
// result already recorded as failed, and if so the op ID to blame.
func failedDep(op types.Op, results map[string]types.OpResult) (string, bool) {
	for _, dep := range op.Deps {
		if r, ok := results[dep]; ok && r.Status == types.OpError {
			return dep, true
		}
	}
	return "", false
}

// topologicalOrder returns ops' IDs in an order where every op
// follows all of its dependencies, or an error if ops contains a
// cycle.
func topologicalOrder(ops []types.Op) ([]string, error) {
	byID := make(map[string]types.Op, len(ops))
	for _, op := range ops {
		byID[op.ID] = op
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(ops))
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("flow: cycle detected at op %q", id)
		}

		state[id] = visiting
		op, ok := byID[id]
		if !ok {
			return fmt.Errorf("flow: op %q depends on unknown op", id)
		}
		for _, dep := range op.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for _, op := range ops {
		if err := visit(op.ID); err != nil {
			return nil, err
		}
	}

	return order, nil
}
