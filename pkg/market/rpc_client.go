package market

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/meridian-network/node/pkg/keypair"
	"github.com/meridian-network/node/pkg/types"
)

// RPCClient is the real ChainRPC implementation: a JSON-RPC client
// against the chain's RPC endpoint, signing submitted transactions
// with the node's keypair.
type RPCClient struct {
	client *resty.Client
	signer *keypair.Keypair
}

// NewRPCClient builds a ChainRPC against rpcURL. signer may be nil if
// the node's key hasn't been provisioned yet; submit calls will then
// return an error until it is, which the Market Client classifies as
// RpcTransient like any other submit failure.
func NewRPCClient(rpcURL string, signer *keypair.Keypair) *RPCClient {
	return &RPCClient{
		client: resty.New().SetBaseURL(rpcURL),
		signer: signer,
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{Method: method, Params: params}).
		SetResult(out).
		Post("/")
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("rpc %s: status %d", method, resp.StatusCode())
	}
	return nil
}

func (c *RPCClient) GetMarket(ctx context.Context, address string) (types.Market, error) {
	var m types.Market
	err := c.call(ctx, "getMarket", map[string]string{"address": address}, &m)
	return m, err
}

func (c *RPCClient) GetJob(ctx context.Context, address string) (types.Job, error) {
	var j types.Job
	err := c.call(ctx, "getJob", map[string]string{"address": address}, &j)
	return j, err
}

func (c *RPCClient) GetRun(ctx context.Context, address string) (types.Run, error) {
	var r types.Run
	err := c.call(ctx, "getRun", map[string]string{"address": address}, &r)
	return r, err
}

func (c *RPCClient) FindRunsForNode(ctx context.Context, nodeAddress string) ([]types.Run, error) {
	var runs []types.Run
	err := c.call(ctx, "findRunsForNode", map[string]string{"node": nodeAddress}, &runs)
	return runs, err
}

func (c *RPCClient) GetBalances(ctx context.Context, nodeAddress string) (types.HealthSnapshot, error) {
	var snapshot types.HealthSnapshot
	err := c.call(ctx, "getBalances", map[string]string{"node": nodeAddress}, &snapshot)
	return snapshot, err
}

func (c *RPCClient) submit(ctx context.Context, method string, params any) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("rpc %s: no signer keypair loaded", method)
	}

	var result struct {
		Signature string `json:"signature"`
	}
	if err := c.call(ctx, method, params, &result); err != nil {
		return "", err
	}
	return result.Signature, nil
}

func (c *RPCClient) SubmitEnterMarket(ctx context.Context, marketAddress string) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("rpc enterMarket: no signer keypair loaded")
	}
	return c.submit(ctx, "enterMarket", map[string]string{"market": marketAddress, "node": c.signer.Address()})
}

func (c *RPCClient) SubmitFinishJob(ctx context.Context, jobAddress, resultCID string) (string, error) {
	return c.submit(ctx, "finishJob", map[string]string{"job": jobAddress, "resultCid": resultCID})
}

func (c *RPCClient) SubmitQuitJob(ctx context.Context, jobAddress string) (string, error) {
	return c.submit(ctx, "quitJob", map[string]string{"job": jobAddress})
}

func (c *RPCClient) SubmitExitMarket(ctx context.Context, marketAddress string) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("rpc exitMarket: no signer keypair loaded")
	}
	return c.submit(ctx, "exitMarket", map[string]string{"market": marketAddress, "node": c.signer.Address()})
}

func (c *RPCClient) AwaitTx(ctx context.Context, signature string) (types.TxOutcome, error) {
	var outcome types.TxOutcome
	err := c.call(ctx, "getTxStatus", map[string]string{"signature": signature}, &outcome)
	return outcome, err
}
