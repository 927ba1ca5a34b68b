// Package config loads the node's configuration from a YAML file,
// with environment variable overrides for the secrets an operator
// should not have to commit to disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of node settings loaded at startup.
type Config struct {
	NodeID string `yaml:"nodeId"`

	Market MarketConfig `yaml:"market"`
	Blob   BlobConfig   `yaml:"blob"`
	Engine EngineConfig `yaml:"engine"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	API    APIConfig    `yaml:"api"`
	Loop   LoopConfig   `yaml:"loop"`
}

// MarketConfig addresses the on-chain queue this node waits in and
// the keypair file it signs transactions with.
type MarketConfig struct {
	Address    string        `yaml:"address"`
	RPCURL     string        `yaml:"rpcUrl"`
	KeyFile    string        `yaml:"keyFile"`
	JobTimeout time.Duration `yaml:"jobTimeout"`
}

// BlobConfig addresses the content-addressed blob gateway.
type BlobConfig struct {
	GatewayURL string        `yaml:"gatewayUrl"`
	AuthToken  string        `yaml:"-"` // NOSANA_BLOB_TOKEN env only
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cacheSize"`
}

// EngineConfig addresses the container engine the Flow Runner
// dispatches docker.run ops to.
type EngineConfig struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// StoreConfig places the Flow Store's bbolt file on disk.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig mirrors pkg/log.Config in YAML-loadable form.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"jsonOutput"`
}

// APIConfig addresses the /health and /metrics HTTP surface.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// LoopConfig tunes the Work Loop's polling cadence.
type LoopConfig struct {
	TickInterval      time.Duration `yaml:"tickInterval"`
	HealthInterval    time.Duration `yaml:"healthInterval"`
	MinSOLBalance     float64       `yaml:"minSolBalance"`
	OpenMarketAllowed bool          `yaml:"openMarketAllowed"`
}

// defaults applied to zero-valued fields after the YAML file is
// parsed, mirroring the teacher's cobra persistent-flag defaults.
func defaults() Config {
	return Config{
		Blob: BlobConfig{
			Timeout:   30 * time.Second,
			CacheSize: 4096,
		},
		Engine: EngineConfig{
			Namespace: "meridian",
		},
		Store: StoreConfig{
			Path: "/var/lib/meridian-node/flow.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		API: APIConfig{
			ListenAddr: ":9090",
		},
		Loop: LoopConfig{
			TickInterval:   5 * time.Second,
			HealthInterval: 15 * time.Minute,
			MinSOLBalance:  0.01,
		},
	}
}

// Load reads a YAML config file, applies defaults for anything left
// unset, and layers the NOSANA_BLOB_TOKEN environment override on
// top. It does not validate; call Validate separately so callers can
// decide whether a misconfiguration is fatal.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if tok := os.Getenv("NOSANA_BLOB_TOKEN"); tok != "" {
		cfg.Blob.AuthToken = tok
	}

	return &cfg, nil
}

// Validate reports the first missing setting the node cannot start
// without. Collaborator reachability (can the engine or gateway
// actually be dialed) is the Health Monitor's job, not this one's.
func (c *Config) Validate() error {
	switch {
	case c.Market.Address == "":
		return fmt.Errorf("config: market.address is required")
	case c.Market.RPCURL == "":
		return fmt.Errorf("config: market.rpcUrl is required")
	case c.Market.KeyFile == "":
		return fmt.Errorf("config: market.keyFile is required")
	case c.Blob.GatewayURL == "":
		return fmt.Errorf("config: blob.gatewayUrl is required")
	case c.Engine.Address == "":
		return fmt.Errorf("config: engine.address is required")
	case c.Store.Path == "":
		return fmt.Errorf("config: store.path is required")
	}
	return nil
}
