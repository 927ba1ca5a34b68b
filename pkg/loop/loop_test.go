package loop

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/meridian-network/node/pkg/cid"
	"github.com/meridian-network/node/pkg/health"
	"github.com/meridian-network/node/pkg/settlement"
	"github.com/meridian-network/node/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	runs       []types.Run
	job        types.Job
	queue      []string
	enterCalls int
}

func (f *fakeMarket) FindMyRuns(ctx context.Context, nodeAddress string) ([]types.Run, error) {
	return f.runs, nil
}
func (f *fakeMarket) GetJob(ctx context.Context, address string) (types.Job, error) {
	return f.job, nil
}
func (f *fakeMarket) GetMarket(ctx context.Context, marketAddress string) (types.Market, error) {
	return types.Market{Address: marketAddress, Queue: f.queue}, nil
}
func (f *fakeMarket) EnterMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error) {
	f.enterCalls++
	f.queue = append(f.queue, "node1")
	return types.TxOutcome{Status: types.TxConfirmed}, nil
}

type fakeBlob struct {
	docs map[string][]byte
}

func (f *fakeBlob) GetJSON(ctx context.Context, cidStr string, v any) error {
	data := f.docs[cidStr]
	return json.Unmarshal(data, v)
}

type fakeStore struct {
	flows   map[string]types.Flow
	jobFlow map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{flows: map[string]types.Flow{}, jobFlow: map[string]string{}}
}
func (s *fakeStore) Save(f types.Flow) error { s.flows[f.ID] = f; return nil }
func (s *fakeStore) Get(id string) (types.Flow, bool, error) {
	f, ok := s.flows[id]
	return f, ok, nil
}
func (s *fakeStore) BindJobFlow(jobAddr, flowID string) error {
	s.jobFlow[jobAddr] = flowID
	return nil
}
func (s *fakeStore) FlowIDForJob(jobAddr string) (string, bool, error) {
	id, ok := s.jobFlow[jobAddr]
	return id, ok, nil
}

type fakeHealth struct {
	verdict health.Verdict
}

func (f *fakeHealth) Check(ctx context.Context) health.Verdict { return f.verdict }

type fakeSettler struct {
	outcome settlement.Outcome
}

func (f *fakeSettler) ProcessFlow(ctx context.Context, jobAddr string, flow types.Flow) (settlement.Outcome, error) {
	return f.outcome, nil
}

type fakeRunner struct {
	resultCID string
}

func (f *fakeRunner) Run(ctx context.Context, flow *types.Flow) error {
	if flow.Results == nil {
		flow.Results = map[string]types.OpResult{}
	}
	flow.Results[types.ResultIPFSKey] = types.OpResult{Status: types.OpOK, Value: f.resultCID}
	return nil
}

func healthyVerdict() health.Verdict {
	return health.Verdict{Healthy: true, Snapshot: types.HealthSnapshot{SOLBalance: 1, NFTCount: 1}}
}

func TestLoopEntersMarketWhenIdleAndNotQueued(t *testing.T) {
	market := &fakeMarket{}
	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		Market:        market,
		Health:        &fakeHealth{verdict: healthyVerdict()},
	}, time.Minute)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateQueued, state)
	assert.Equal(t, 1, market.enterCalls)
}

func TestLoopStaysQueuedOnceQueued(t *testing.T) {
	market := &fakeMarket{}
	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		Market:        market,
		Health:        &fakeHealth{verdict: healthyVerdict()},
	}, time.Minute)

	_, err := l.Tick(context.Background())
	require.NoError(t, err)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateQueued, state)
	assert.Equal(t, 1, market.enterCalls, "already on the on-chain queue, should not re-submit enter_market")
}

func TestLoopReentersMarketAfterSettlementDequeues(t *testing.T) {
	digest := cid.Encode([32]byte{1, 2, 3})
	jobDoc := types.JobDocument{
		Type:     types.JobTypePipeline,
		Pipeline: types.PipelineSpec{Image: "alpine", Commands: []string{"echo", "hi"}},
	}
	docBytes, err := json.Marshal(jobDoc)
	require.NoError(t, err)

	market := &fakeMarket{
		runs: []types.Run{{Address: "run1", Node: "node1", Job: "job1", Time: time.Now()}},
		job:  types.Job{Address: "job1", Market: "mkt1", IPFSJob: [32]byte{1, 2, 3}},
	}
	blob := &fakeBlob{docs: map[string][]byte{digest: docBytes}}
	store := newFakeStore()
	settler := &fakeSettler{outcome: settlement.OutcomeFinished}
	runner := &fakeRunner{resultCID: "result-cid"}

	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		JobTimeout:    time.Hour,
		Market:        market,
		Blob:          blob,
		Store:         store,
		Health:        &fakeHealth{verdict: healthyVerdict()},
		Settlement:    settler,
		Runner:        runner,
	}, time.Minute)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state, "a confirmed settlement clears the active flow")

	// The run is claimed and settled; the chain no longer lists any
	// runs for this node and the node has fallen out of the queue.
	market.runs = nil

	state, err = l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateQueued, state)
	assert.Equal(t, 1, market.enterCalls, "loop must re-enter the market queue after a settled run, not execute only one job per lifetime")
}

func TestLoopUnhealthyStateShortCircuits(t *testing.T) {
	market := &fakeMarket{}
	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		Market:        market,
		Health:        &fakeHealth{verdict: health.Verdict{Healthy: false, Reasons: []string{"no signer key"}}},
	}, time.Minute)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnhealthy, state)
	assert.Equal(t, 0, market.enterCalls, "an unhealthy node should not try to enter the market")
}

func TestLoopClaimsBuildsRunsAndSettlesFlow(t *testing.T) {
	digest := cid.Encode([32]byte{1, 2, 3})
	jobDoc := types.JobDocument{
		Type:     types.JobTypePipeline,
		Pipeline: types.PipelineSpec{Image: "alpine", Commands: []string{"echo", "hi"}},
	}
	docBytes, err := json.Marshal(jobDoc)
	require.NoError(t, err)

	market := &fakeMarket{
		runs: []types.Run{{Address: "run1", Node: "node1", Job: "job1", Time: time.Now()}},
		job:  types.Job{Address: "job1", Market: "mkt1", IPFSJob: [32]byte{1, 2, 3}},
	}
	blob := &fakeBlob{docs: map[string][]byte{digest: docBytes}}
	store := newFakeStore()
	settler := &fakeSettler{outcome: settlement.OutcomeFinished}
	runner := &fakeRunner{resultCID: "result-cid"}

	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		JobTimeout:    time.Hour,
		Market:        market,
		Blob:          blob,
		Store:         store,
		Health:        &fakeHealth{verdict: healthyVerdict()},
		Settlement:    settler,
		Runner:        runner,
	}, time.Minute)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state, "a confirmed finish clears the active flow")

	flowID, ok, err := store.FlowIDForJob("job1")
	require.NoError(t, err)
	require.True(t, ok)

	saved, ok, err := store.Get(flowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, saved.Finished())
}

func TestLoopResumesExistingFlowWithoutRebuilding(t *testing.T) {
	market := &fakeMarket{
		runs: []types.Run{{Address: "run1", Node: "node1", Job: "job1", Time: time.Now()}},
		job:  types.Job{Address: "job1", Market: "mkt1"},
	}
	store := newFakeStore()
	existing := types.Flow{ID: "flow-existing", Ops: []types.Op{{ID: "docker.run"}}}
	store.flows["flow-existing"] = existing
	store.jobFlow["job1"] = "flow-existing"

	settler := &fakeSettler{outcome: settlement.OutcomeNone}
	runner := &fakeRunner{resultCID: "ignored"}

	l := New(NodeContext{
		NodeAddress:   "node1",
		MarketAddress: "mkt1",
		Market:        market,
		Store:         store,
		Health:        &fakeHealth{verdict: healthyVerdict()},
		Settlement:    settler,
		Runner:        runner,
	}, time.Minute)

	state, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateClaimed, state)
}
