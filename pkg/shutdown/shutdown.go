// Package shutdown coordinates the node's graceful exit: stop taking
// new work, leave any in-flight flow untouched for the next start to
// resume, leave the market queue, and close storage — the Shutdown
// Coordinator from spec section 4.9.
package shutdown

import (
	"context"
	"time"

	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/types"
)

// LoopRunner is the subset of pkg/loop.Runner the coordinator needs.
type LoopRunner interface {
	Stop()
}

// MarketClient is the subset of pkg/market.Client the coordinator
// needs to check and leave the queue.
type MarketClient interface {
	GetMarket(ctx context.Context, marketAddress string) (types.Market, error)
	ExitMarket(ctx context.Context, marketAddress string) (types.TxOutcome, error)
}

// Closer matches the Flow Store's and container engine's Close.
type Closer interface {
	Close() error
}

// Coordinator runs the node's shutdown sequence once, best-effort:
// every step runs even if an earlier one failed, and every failure is
// logged rather than returned, since a stuck node should still exit.
type Coordinator struct {
	Loop          LoopRunner
	Market        MarketClient
	MarketAddress string
	NodeAddress   string
	Store         Closer
	Engine        Closer
	Timeout       time.Duration
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

// Run executes the shutdown sequence: stop the Work Loop, exit the
// market queue only if still queued (an active, claimed flow is never
// quit unilaterally — the next node start resumes it from the Flow
// Store), close the Flow Store, close the container engine
// connection.
func (c *Coordinator) Run(ctx context.Context) {
	logger := log.WithComponent("shutdown")
	logger.Info().Msg("shutdown starting")

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if c.Loop != nil {
		c.Loop.Stop()
		logger.Info().Msg("work loop stopped")
	}

	if c.Market != nil {
		market, err := c.Market.GetMarket(shutdownCtx, c.MarketAddress)
		if err != nil {
			logger.Error().Err(err).Msg("check market queue failed, skipping exit_market")
		} else if !inQueue(market, c.NodeAddress) {
			logger.Info().Msg("not queued, skipping exit_market")
		} else if _, err := c.Market.ExitMarket(shutdownCtx, c.MarketAddress); err != nil {
			logger.Error().Err(err).Msg("exit market failed, continuing shutdown")
		} else {
			logger.Info().Msg("exited market queue")
		}
	}

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Error().Err(err).Msg("close flow store failed")
		}
	}

	if c.Engine != nil {
		if err := c.Engine.Close(); err != nil {
			logger.Error().Err(err).Msg("close container engine failed")
		}
	}

	logger.Info().Msg("shutdown complete")
}
