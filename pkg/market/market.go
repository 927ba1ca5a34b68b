// Package market wraps the on-chain Market and Job accounts behind
// the node's injected ChainRPC collaborator, giving the Work Loop
// typed methods instead of raw account decoding.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-network/node/pkg/errkind"
	"github.com/meridian-network/node/pkg/types"
)

// ChainRPC is the out-of-scope collaborator spec section 2 names: the
// transport that actually talks to the chain. The node depends only
// on this interface.
type ChainRPC interface {
	GetMarket(ctx context.Context, address string) (types.Market, error)
	GetJob(ctx context.Context, address string) (types.Job, error)
	GetRun(ctx context.Context, address string) (types.Run, error)
	FindRunsForNode(ctx context.Context, nodeAddress string) ([]types.Run, error)

	SubmitEnterMarket(ctx context.Context, marketAddress string) (signature string, err error)
	SubmitFinishJob(ctx context.Context, jobAddress, resultCID string) (signature string, err error)
	SubmitQuitJob(ctx context.Context, jobAddress string) (signature string, err error)
	SubmitExitMarket(ctx context.Context, marketAddress string) (signature string, err error)

	AwaitTx(ctx context.Context, signature string) (types.TxOutcome, error)

	GetBalances(ctx context.Context, nodeAddress string) (types.HealthSnapshot, error)
}

// Client is the Market Client component.
type Client struct {
	rpc         ChainRPC
	awaitPoll   time.Duration
	awaitRounds int
}

// New builds a Client. awaitPoll/awaitRounds tune AwaitTx's polling
// loop; spec section 4.1 calls for roughly 30 polls at a 2 second
// cadence.
func New(rpc ChainRPC) *Client {
	return &Client{rpc: rpc, awaitPoll: 2 * time.Second, awaitRounds: 30}
}

func (c *Client) GetMarket(ctx context.Context, address string) (types.Market, error) {
	m, err := c.rpc.GetMarket(ctx, address)
	if err != nil {
		return types.Market{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: get market %s: %w", address, err))
	}
	return m, nil
}

func (c *Client) GetJob(ctx context.Context, address string) (types.Job, error) {
	j, err := c.rpc.GetJob(ctx, address)
	if err != nil {
		return types.Job{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: get job %s: %w", address, err))
	}
	return j, nil
}

func (c *Client) GetRun(ctx context.Context, address string) (types.Run, error) {
	r, err := c.rpc.GetRun(ctx, address)
	if err != nil {
		return types.Run{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: get run %s: %w", address, err))
	}
	return r, nil
}

// FindMyRuns returns every Run account currently assigned to
// nodeAddress. The Work Loop polls this each tick to notice a claim.
func (c *Client) FindMyRuns(ctx context.Context, nodeAddress string) ([]types.Run, error) {
	runs, err := c.rpc.FindRunsForNode(ctx, nodeAddress)
	if err != nil {
		return nil, errkind.New(errkind.RpcTransient, fmt.Errorf("market: find runs for %s: %w", nodeAddress, err))
	}
	return runs, nil
}

// EnterMarket submits and confirms the node's entry into a market's
// queue.
func (c *Client) EnterMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error) {
	sig, err := c.rpc.SubmitEnterMarket(ctx, marketAddress)
	if err != nil {
		return types.TxOutcome{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: enter market %s: %w", marketAddress, err))
	}
	return c.AwaitTx(ctx, sig)
}

// FinishJob submits the finish transaction referencing the uploaded
// result document's CID.
func (c *Client) FinishJob(ctx context.Context, jobAddress, resultCID string) (types.TxOutcome, error) {
	sig, err := c.rpc.SubmitFinishJob(ctx, jobAddress, resultCID)
	if err != nil {
		return types.TxOutcome{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: finish job %s: %w", jobAddress, err))
	}
	return c.AwaitTx(ctx, sig)
}

// QuitJob submits the quit transaction for a job the node cannot or
// will not complete, e.g. after its Run expired.
func (c *Client) QuitJob(ctx context.Context, jobAddress string) (types.TxOutcome, error) {
	sig, err := c.rpc.SubmitQuitJob(ctx, jobAddress)
	if err != nil {
		return types.TxOutcome{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: quit job %s: %w", jobAddress, err))
	}
	return c.AwaitTx(ctx, sig)
}

// ExitMarket submits the node's withdrawal from a market's queue,
// used by the Shutdown Coordinator.
func (c *Client) ExitMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error) {
	sig, err := c.rpc.SubmitExitMarket(ctx, marketAddress)
	if err != nil {
		return types.TxOutcome{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: exit market %s: %w", marketAddress, err))
	}
	return c.AwaitTx(ctx, sig)
}

// Balances returns nodeAddress's current on-chain balances, the
// input the Node Monitor grades against the minimum SOL threshold.
func (c *Client) Balances(ctx context.Context, nodeAddress string) (types.HealthSnapshot, error) {
	snapshot, err := c.rpc.GetBalances(ctx, nodeAddress)
	if err != nil {
		return types.HealthSnapshot{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: get balances for %s: %w", nodeAddress, err))
	}
	return snapshot, nil
}

// AwaitTx polls for a submitted transaction's outcome, giving up with
// TxTimeout after awaitRounds polls.
func (c *Client) AwaitTx(ctx context.Context, signature string) (types.TxOutcome, error) {
	// A non-positive awaitPoll polls back to back without waiting.
	wait := make(chan time.Time)
	close(wait)
	var tick <-chan time.Time = wait
	if c.awaitPoll > 0 {
		ticker := time.NewTicker(c.awaitPoll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < c.awaitRounds; i++ {
		outcome, err := c.rpc.AwaitTx(ctx, signature)
		if err != nil {
			return types.TxOutcome{}, errkind.New(errkind.RpcTransient, fmt.Errorf("market: await tx %s: %w", signature, err))
		}
		if outcome.Status != "" && outcome.Status != types.TxTimeout {
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return types.TxOutcome{}, errkind.New(errkind.Cancelled, ctx.Err())
		case <-tick:
		}
	}

	return types.TxOutcome{Status: types.TxTimeout, Signature: signature}, nil
}
