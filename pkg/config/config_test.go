package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
nodeId: node-1
market:
  address: mkt111
  rpcUrl: https://rpc.example.com
  keyFile: /etc/meridian/node.key
blob:
  gatewayUrl: https://blob.example.com
  cacheSize: 128
engine:
  address: containerd.sock
store:
  path: /tmp/flow.db
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.NodeID)
	assert.Equal(t, 128, cfg.Blob.CacheSize)
	assert.Equal(t, "meridian", cfg.Engine.Namespace)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadBlobTokenFromEnv(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	t.Setenv("NOSANA_BLOB_TOKEN", "secret-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Blob.AuthToken)
}

func TestValidateRequiresMarketAddress(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
