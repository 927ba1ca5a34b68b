package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridian-network/node/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeLoop struct{ stopped bool }

func (f *fakeLoop) Stop() { f.stopped = true }

type fakeMarket struct {
	queue      []string
	getErr     error
	exitCalled bool
	err        error
}

func (f *fakeMarket) GetMarket(ctx context.Context, marketAddress string) (types.Market, error) {
	return types.Market{Address: marketAddress, Queue: f.queue}, f.getErr
}

func (f *fakeMarket) ExitMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error) {
	f.exitCalled = true
	return types.TxOutcome{}, f.err
}

type fakeCloser struct {
	closed bool
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return f.err
}

func TestRunExecutesFullSequence(t *testing.T) {
	loop := &fakeLoop{}
	market := &fakeMarket{queue: []string{"node1"}}
	store := &fakeCloser{}
	engine := &fakeCloser{}

	c := &Coordinator{Loop: loop, Market: market, MarketAddress: "mkt1", NodeAddress: "node1", Store: store, Engine: engine, Timeout: time.Second}
	c.Run(context.Background())

	assert.True(t, loop.stopped)
	assert.True(t, market.exitCalled)
	assert.True(t, store.closed)
	assert.True(t, engine.closed)
}

func TestRunContinuesPastStepFailures(t *testing.T) {
	loop := &fakeLoop{}
	market := &fakeMarket{queue: []string{"node1"}, err: errors.New("rpc down")}
	store := &fakeCloser{err: errors.New("already closed")}
	engine := &fakeCloser{}

	c := &Coordinator{Loop: loop, Market: market, MarketAddress: "mkt1", NodeAddress: "node1", Store: store, Engine: engine, Timeout: time.Second}
	c.Run(context.Background())

	assert.True(t, loop.stopped)
	assert.True(t, engine.closed, "engine close should still run after store close failed")
}

func TestRunSkipsExitMarketWhenNotQueued(t *testing.T) {
	loop := &fakeLoop{}
	market := &fakeMarket{queue: []string{"some-other-node"}}
	store := &fakeCloser{}
	engine := &fakeCloser{}

	c := &Coordinator{Loop: loop, Market: market, MarketAddress: "mkt1", NodeAddress: "node1", Store: store, Engine: engine, Timeout: time.Second}
	c.Run(context.Background())

	assert.False(t, market.exitCalled, "a node holding an active claimed flow should not unilaterally exit the market")
	assert.True(t, store.closed)
	assert.True(t, engine.closed)
}

func TestRunSkipsExitMarketWhenQueueCheckFails(t *testing.T) {
	loop := &fakeLoop{}
	market := &fakeMarket{getErr: errors.New("rpc down")}
	store := &fakeCloser{}
	engine := &fakeCloser{}

	c := &Coordinator{Loop: loop, Market: market, MarketAddress: "mkt1", NodeAddress: "node1", Store: store, Engine: engine, Timeout: time.Second}
	c.Run(context.Background())

	assert.False(t, market.exitCalled)
	assert.True(t, store.closed)
}

func TestRunTolerantOfNilCollaborators(t *testing.T) {
	c := &Coordinator{}
	c.Run(context.Background())
}
