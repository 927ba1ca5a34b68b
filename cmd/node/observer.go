package main

import (
	"context"

	"github.com/meridian-network/node/pkg/keypair"
	"github.com/meridian-network/node/pkg/market"
	"github.com/meridian-network/node/pkg/runtime"
	"github.com/meridian-network/node/pkg/types"
)

// nodeObserver adapts the node's real collaborators to
// health.Observer.
type nodeObserver struct {
	keyFile     string
	hasBlobAuth bool
	engine      *runtime.ContainerdEngine
	market      *market.Client
	nodeAddress string
}

func (o *nodeObserver) SignerKeyPresent() bool {
	return keypair.Exists(o.keyFile)
}

func (o *nodeObserver) BlobCredentialPresent() bool {
	return o.hasBlobAuth
}

func (o *nodeObserver) ContainerEngineReachable(ctx context.Context) bool {
	return o.engine.Reachable(ctx)
}

func (o *nodeObserver) Balances(ctx context.Context) (types.HealthSnapshot, error) {
	return o.market.Balances(ctx, o.nodeAddress)
}
