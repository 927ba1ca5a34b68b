package health

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-network/node/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeObserver struct {
	signerKey  bool
	blobCred   bool
	engineUp   bool
	snapshot   types.HealthSnapshot
	balanceErr error
}

func (f *fakeObserver) SignerKeyPresent() bool      { return f.signerKey }
func (f *fakeObserver) BlobCredentialPresent() bool { return f.blobCred }
func (f *fakeObserver) ContainerEngineReachable(ctx context.Context) bool {
	return f.engineUp
}
func (f *fakeObserver) Balances(ctx context.Context) (types.HealthSnapshot, error) {
	return f.snapshot, f.balanceErr
}

func healthyObserver() *fakeObserver {
	return &fakeObserver{
		signerKey: true,
		blobCred:  true,
		engineUp:  true,
		snapshot:  types.HealthSnapshot{SOLBalance: 1.0, NOSBalance: 10, NFTCount: 1},
	}
}

func TestNodeMonitorHealthy(t *testing.T) {
	m := &NodeMonitor{Observer: healthyObserver(), MinSOLBalance: 0.01}
	v := m.Check(context.Background())
	assert.True(t, v.Healthy)
	assert.Empty(t, v.Reasons)
}

func TestNodeMonitorLowBalance(t *testing.T) {
	obs := healthyObserver()
	obs.snapshot.SOLBalance = 0.001
	m := &NodeMonitor{Observer: obs, MinSOLBalance: 0.01}

	v := m.Check(context.Background())
	assert.False(t, v.Healthy)
	assert.Contains(t, v.Reasons[0], "SOL balance")
}

func TestNodeMonitorMissingSignerKey(t *testing.T) {
	obs := healthyObserver()
	obs.signerKey = false
	m := &NodeMonitor{Observer: obs, MinSOLBalance: 0.01}

	v := m.Check(context.Background())
	assert.False(t, v.Healthy)
	assert.Contains(t, v.Reasons, "signer key not present")
}

func TestNodeMonitorNoNFTClosedMarket(t *testing.T) {
	obs := healthyObserver()
	obs.snapshot.NFTCount = 0
	m := &NodeMonitor{Observer: obs, MinSOLBalance: 0.01, OpenMarketAllowed: false}

	v := m.Check(context.Background())
	assert.False(t, v.Healthy)
}

func TestNodeMonitorNoNFTOpenMarket(t *testing.T) {
	obs := healthyObserver()
	obs.snapshot.NFTCount = 0
	m := &NodeMonitor{Observer: obs, MinSOLBalance: 0.01, OpenMarketAllowed: true}

	v := m.Check(context.Background())
	assert.True(t, v.Healthy)
}

func TestNodeMonitorBalanceLookupFailure(t *testing.T) {
	obs := healthyObserver()
	obs.balanceErr = errors.New("rpc down")
	m := &NodeMonitor{Observer: obs, MinSOLBalance: 0.01}

	v := m.Check(context.Background())
	assert.False(t, v.Healthy)
	assert.Contains(t, v.Reasons[0], "balance lookup failed")
}
