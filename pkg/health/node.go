package health

import (
	"context"
	"fmt"

	"github.com/meridian-network/node/pkg/types"
)

// Observer supplies the point-in-time facts the Node Monitor grades.
// cmd/node adapts the signer key file, blob credential, container
// Engine, and Market Client behind it; tests inject fakes.
type Observer interface {
	SignerKeyPresent() bool
	BlobCredentialPresent() bool
	ContainerEngineReachable(ctx context.Context) bool
	Balances(ctx context.Context) (types.HealthSnapshot, error)
}

// NodeMonitor grades the node's overall health the way spec section
// 4.3 describes: not as a single boolean, but as a snapshot plus the
// list of reasons keeping it from being "Healthy".
type NodeMonitor struct {
	Observer          Observer
	MinSOLBalance     float64
	OpenMarketAllowed bool
}

// Verdict is the outcome of one Check.
type Verdict struct {
	Healthy  bool
	Snapshot types.HealthSnapshot
	Reasons  []string
}

// Check gathers every reason the node would be unhealthy this tick.
// Balance-fetch failure is itself a reason rather than an error
// return, since the Work Loop needs a verdict even when the RPC is
// unreachable.
func (m *NodeMonitor) Check(ctx context.Context) Verdict {
	var reasons []string

	if !m.Observer.SignerKeyPresent() {
		reasons = append(reasons, "signer key not present")
	}
	if !m.Observer.BlobCredentialPresent() {
		reasons = append(reasons, "blob gateway credential not present")
	}
	if !m.Observer.ContainerEngineReachable(ctx) {
		reasons = append(reasons, "container engine unreachable")
	}

	snapshot, err := m.Observer.Balances(ctx)
	if err != nil {
		reasons = append(reasons, fmt.Sprintf("balance lookup failed: %v", err))
		return Verdict{Healthy: false, Reasons: reasons}
	}

	if snapshot.SOLBalance < m.MinSOLBalance {
		reasons = append(reasons, fmt.Sprintf("SOL balance %.4f below minimum %.4f", snapshot.SOLBalance, m.MinSOLBalance))
	}
	if snapshot.NFTCount < 1 && !m.OpenMarketAllowed {
		reasons = append(reasons, "no access NFT held and market is not open-access")
	}

	return Verdict{
		Healthy:  len(reasons) == 0,
		Snapshot: snapshot,
		Reasons:  reasons,
	}
}
