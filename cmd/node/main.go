package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-network/node/pkg/api"
	"github.com/meridian-network/node/pkg/blob"
	"github.com/meridian-network/node/pkg/config"
	"github.com/meridian-network/node/pkg/flow"
	"github.com/meridian-network/node/pkg/flowstore"
	"github.com/meridian-network/node/pkg/health"
	"github.com/meridian-network/node/pkg/keypair"
	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/loop"
	"github.com/meridian-network/node/pkg/market"
	"github.com/meridian-network/node/pkg/runtime"
	"github.com/meridian-network/node/pkg/settlement"
	"github.com/meridian-network/node/pkg/shutdown"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "meridian-node",
	Short:   "Meridian node — runs jobs claimed from an on-chain compute market",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"meridian-node version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringP("config", "c", "/etc/meridian/node.yaml", "Path to node config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(healthCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node's Work Loop and HTTP surface",
	RunE:  runStart,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the node's current health verdict and exit",
	RunE:  runHealthCheck,
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildNode wires every collaborator the spec names from cfg: the
// Market Client, Blob Client, container Engine, Flow Store, Flow
// Runner, Health Monitor, and Settlement component.
func buildNode(cfg *config.Config) (*loop.Loop, *flowstore.BoltStore, *runtime.ContainerdEngine, *health.NodeMonitor, *market.Client, error) {
	kp, err := keypair.LoadFile(cfg.Market.KeyFile)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("signer key not yet available")
	}

	rpc := market.NewRPCClient(cfg.Market.RPCURL, kp)
	marketClient := market.New(rpc)

	gateway := blob.NewRestyGateway(cfg.Blob.GatewayURL, cfg.Blob.AuthToken, cfg.Blob.Timeout)
	blobClient, err := blob.New(gateway, cfg.Blob.CacheSize)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("build blob client: %w", err)
	}

	engine, err := runtime.NewContainerdEngine(cfg.Engine.Address, cfg.Engine.Namespace, os.TempDir())
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect container engine: %w", err)
	}

	store, err := flowstore.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("open flow store: %w", err)
	}

	observer := &nodeObserver{
		keyFile:     cfg.Market.KeyFile,
		hasBlobAuth: cfg.Blob.AuthToken != "",
		engine:      engine,
		market:      marketClient,
		nodeAddress: cfg.NodeID,
	}
	monitor := &health.NodeMonitor{
		Observer:          observer,
		MinSOLBalance:     cfg.Loop.MinSOLBalance,
		OpenMarketAllowed: cfg.Loop.OpenMarketAllowed,
	}

	settler := &settlement.Settlement{
		Market:  marketClient,
		Volumes: engine,
	}

	workDir := func(flowID string) string {
		return fmt.Sprintf("%s/%s", os.TempDir(), flowID)
	}
	runner := flow.NewRunner(store, opHandlers(engine, workDir, flow.WrapUpHandler(blobClient, time.Now, os.ReadFile)))

	l := loop.New(loop.NodeContext{
		NodeAddress:   cfg.NodeID,
		MarketAddress: cfg.Market.Address,
		JobTimeout:    cfg.Market.JobTimeout,
		Market:        marketClient,
		Blob:          blobClient,
		Store:         store,
		Health:        monitor,
		Settlement:    settler,
		Runner:        runner,
	}, cfg.Loop.HealthInterval)

	return l, store, engine, monitor, marketClient, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	l, store, engine, monitor, marketClient, err := buildNode(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := loop.NewRunner(l, cfg.Loop.TickInterval)
	runner.Start(ctx)

	server := &http.Server{Addr: cfg.API.ListenAddr, Handler: api.NewMux(monitor)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("api server failed")
		}
	}()

	log.Logger.Info().Str("listen_addr", cfg.API.ListenAddr).Msg("node started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	coordinator := &shutdown.Coordinator{
		Loop:          runner,
		Market:        marketClient,
		MarketAddress: cfg.Market.Address,
		NodeAddress:   cfg.NodeID,
		Store:         store,
		Engine:        engine,
		Timeout:       30 * time.Second,
	}
	coordinator.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	return nil
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, _, _, monitor, _, err := buildNode(cfg)
	if err != nil {
		return err
	}

	verdict := monitor.Check(context.Background())
	if !verdict.Healthy {
		fmt.Println("unhealthy:")
		for _, reason := range verdict.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		os.Exit(1)
	}

	fmt.Println("healthy")
	return nil
}
