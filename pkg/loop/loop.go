package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-network/node/pkg/cid"
	"github.com/meridian-network/node/pkg/flow"
	"github.com/meridian-network/node/pkg/health"
	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/metrics"
	"github.com/meridian-network/node/pkg/settlement"
	"github.com/meridian-network/node/pkg/types"
)

// State is one of the Work Loop's named states.
type State string

const (
	StateCheckingHealth State = "checking_health"
	StateUnhealthy      State = "unhealthy"
	StateIdle           State = "idle"
	StateQueued         State = "queued"
	StateClaimed        State = "claimed"
	StateSettling       State = "settling"
	StateShuttingDown   State = "shutting_down"
)

// MarketClient is the subset of pkg/market.Client the loop needs.
type MarketClient interface {
	FindMyRuns(ctx context.Context, nodeAddress string) ([]types.Run, error)
	GetJob(ctx context.Context, address string) (types.Job, error)
	GetMarket(ctx context.Context, marketAddress string) (types.Market, error)
	EnterMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error)
}

// BlobClient is the subset of pkg/blob.Client the loop needs.
type BlobClient interface {
	GetJSON(ctx context.Context, cidStr string, v any) error
}

// FlowStore is the subset of pkg/flowstore.BoltStore the loop needs.
type FlowStore interface {
	Save(f types.Flow) error
	Get(id string) (types.Flow, bool, error)
	BindJobFlow(jobAddr, flowID string) error
	FlowIDForJob(jobAddr string) (string, bool, error)
}

// HealthChecker is the subset of pkg/health.NodeMonitor the loop
// needs.
type HealthChecker interface {
	Check(ctx context.Context) health.Verdict
}

// Settler is the subset of pkg/settlement.Settlement the loop needs.
type Settler interface {
	ProcessFlow(ctx context.Context, jobAddr string, f types.Flow) (settlement.Outcome, error)
}

// FlowRunner is the subset of pkg/flow.Runner the loop needs.
type FlowRunner interface {
	Run(ctx context.Context, f *types.Flow) error
}

// NodeContext bundles every collaborator the Work Loop drives,
// rather than reaching for package-level globals: the Market Client,
// Blob Client, Flow Store, Health Monitor, Settlement component, and
// Flow Runner.
type NodeContext struct {
	NodeAddress   string
	MarketAddress string
	JobTimeout    time.Duration

	Market     MarketClient
	Blob       BlobClient
	Store      FlowStore
	Health     HealthChecker
	Settlement Settler
	Runner     FlowRunner
}

// Loop drives NodeContext's collaborators through the Work Loop state
// machine, one tick at a time.
type Loop struct {
	ctx NodeContext

	healthInterval  time.Duration
	lastHealthCheck time.Time
	state           State

	now func() time.Time
}

// New builds a Loop over ctx. healthInterval is how often
// shouldCheckHealth allows a fresh health check; between checks the
// loop trusts its last verdict.
func New(ctx NodeContext, healthInterval time.Duration) *Loop {
	return &Loop{ctx: ctx, healthInterval: healthInterval, state: StateCheckingHealth, now: time.Now}
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.state
}

func (l *Loop) shouldCheckHealth() bool {
	if l.lastHealthCheck.IsZero() {
		return true
	}
	return l.now().Sub(l.lastHealthCheck) >= l.healthInterval
}

// Tick runs one full pass of the state machine: health check (when
// due), run discovery, flow construction/resumption, flow execution,
// and settlement. It returns the state reached.
func (l *Loop) Tick(ctx context.Context) (State, error) {
	logger := log.WithComponent("loop")

	if l.shouldCheckHealth() {
		verdict := l.ctx.Health.Check(ctx)
		l.lastHealthCheck = l.now()

		outcome := "healthy"
		if !verdict.Healthy {
			outcome = "unhealthy"
		}
		metrics.HealthChecksTotal.WithLabelValues(outcome).Inc()
		metrics.SOLBalance.Set(verdict.Snapshot.SOLBalance)
		metrics.NOSBalance.Set(verdict.Snapshot.NOSBalance)

		if !verdict.Healthy {
			logger.Warn().Strs("reasons", verdict.Reasons).Msg("node unhealthy")
			l.setState(StateUnhealthy)
			return l.state, nil
		}
	} else if l.state == StateUnhealthy {
		// Trust the last verdict until the next check is due.
		return l.state, nil
	}

	runs, err := l.ctx.Market.FindMyRuns(ctx, l.ctx.NodeAddress)
	if err != nil {
		return l.state, fmt.Errorf("loop: find runs: %w", err)
	}

	run, err := l.findNextAssignedRun(ctx, runs)
	if err != nil {
		return l.state, fmt.Errorf("loop: find next assigned run: %w", err)
	}

	if run == nil {
		market, err := l.ctx.Market.GetMarket(ctx, l.ctx.MarketAddress)
		if err != nil {
			return l.state, fmt.Errorf("loop: get market: %w", err)
		}

		if inQueue(market, l.ctx.NodeAddress) {
			l.setState(StateQueued)
			return l.state, nil
		}

		if _, err := l.ctx.Market.EnterMarket(ctx, l.ctx.MarketAddress); err != nil {
			return l.state, fmt.Errorf("loop: enter market: %w", err)
		}
		l.setState(StateQueued)
		return l.state, nil
	}

	l.setState(StateClaimed)

	f, err := l.loadOrBuildFlow(ctx, *run)
	if err != nil {
		return l.state, fmt.Errorf("loop: load or build flow for job %s: %w", run.Job, err)
	}

	runErr := l.ctx.Runner.Run(ctx, &f)
	if saveErr := l.ctx.Store.Save(f); saveErr != nil {
		return l.state, fmt.Errorf("loop: save flow %s: %w", f.ID, saveErr)
	}
	if runErr != nil {
		logger.Error().Err(runErr).Str("flow", f.ID).Msg("flow execution reported a failure")
	}

	outcome, err := l.ctx.Settlement.ProcessFlow(ctx, run.Job, f)
	if err != nil {
		return l.state, fmt.Errorf("loop: settle flow %s: %w", f.ID, err)
	}

	switch outcome {
	case settlement.OutcomeFinished, settlement.OutcomeQuit:
		// The settlement transaction is confirmed: the active flow is
		// cleared and the loop goes back to looking for work.
		l.setState(StateIdle)
	case settlement.OutcomeRetry:
		// Submitted but not yet confirmed; retry next tick without
		// clearing the active flow.
		l.setState(StateSettling)
	default:
		// Not finished or expired yet; stay Claimed.
	}

	return l.state, nil
}

func (l *Loop) setState(s State) {
	if l.state != "" {
		metrics.LoopState.WithLabelValues(string(l.state)).Set(0)
	}
	l.state = s
	metrics.LoopState.WithLabelValues(string(s)).Set(1)
}

// loadOrBuildFlow resumes the Flow already bound to run.Job, or
// fetches the job document and builds a fresh one on first sight of
// this run.
func (l *Loop) loadOrBuildFlow(ctx context.Context, run types.Run) (types.Flow, error) {
	if flowID, ok, err := l.ctx.Store.FlowIDForJob(run.Job); err != nil {
		return types.Flow{}, err
	} else if ok {
		f, found, err := l.ctx.Store.Get(flowID)
		if err != nil {
			return types.Flow{}, err
		}
		if found {
			return f, nil
		}
	}

	job, err := l.ctx.Market.GetJob(ctx, run.Job)
	if err != nil {
		return types.Flow{}, fmt.Errorf("get job: %w", err)
	}

	var doc types.JobDocument
	jobCID := cid.Encode(job.IPFSJob)
	if err := l.ctx.Blob.GetJSON(ctx, jobCID, &doc); err != nil {
		return types.Flow{}, fmt.Errorf("fetch job document %s: %w", jobCID, err)
	}

	builder, ok := flow.BuilderFor(doc.Type)
	if !ok {
		return types.Flow{}, fmt.Errorf("no flow builder registered for job type %q", doc.Type)
	}

	f, err := builder.Build(run.Job, run.Address, doc)
	if err != nil {
		return types.Flow{}, fmt.Errorf("build flow: %w", err)
	}

	if l.ctx.JobTimeout > 0 {
		expires := run.Time.Add(l.ctx.JobTimeout)
		f.Expires = &expires
	}

	if err := l.ctx.Store.BindJobFlow(run.Job, f.ID); err != nil {
		return types.Flow{}, err
	}
	if err := l.ctx.Store.Save(f); err != nil {
		return types.Flow{}, err
	}

	metrics.FlowsStarted.Inc()
	return f, nil
}

// findNextAssignedRun returns the first run whose job belongs to the
// configured market, guarding against stale runs left over from a
// previous market the node was queued in.
func (l *Loop) findNextAssignedRun(ctx context.Context, runs []types.Run) (*types.Run, error) {
	for i := range runs {
		job, err := l.ctx.Market.GetJob(ctx, runs[i].Job)
		if err != nil {
			return nil, fmt.Errorf("get job %s: %w", runs[i].Job, err)
		}
		if job.Market == l.ctx.MarketAddress {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// inQueue reports whether nodeAddress is present in market's waiting
// list.
func inQueue(market types.Market, nodeAddress string) bool {
	for _, addr := range market.Queue {
		if addr == nodeAddress {
			return true
		}
	}
	return false
}
