package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goran-ethernal/BlockStreamor/internal/bench"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/config"
	"github.com/goran-ethernal/BlockStreamor/internal/fetcher"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
	"github.com/goran-ethernal/BlockStreamor/internal/rpc"
	"github.com/goran-ethernal/BlockStreamor/internal/source"
	itypes "github.com/goran-ethernal/BlockStreamor/internal/types"
	pkgconfig "github.com/goran-ethernal/BlockStreamor/pkg/config"
	"github.com/goran-ethernal/BlockStreamor/pkg/stream"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

var (
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockstream",
	Short: "BlockStreamor - ordered, gap-free Bitcoin block streaming",
	Long: `BlockStreamor feeds downstream indexers an ordered, gap-free stream of
Bitcoin blocks, either by scanning the raw blk*.dat files a node writes or by
pulling blocks from a running node over RPC. Both sources deliver blocks in
canonical chain order and surface chain reorganizations.`,
	Version: version,
	RunE:    runStream,
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List supported networks",
	Long:  `List the networks that can be used in the configuration file.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Supported networks:")
		for _, n := range []itypes.Network{
			itypes.NetworkMainnet,
			itypes.NetworkTestnet,
			itypes.NetworkRegtest,
			itypes.NetworkSignet,
		} {
			fmt.Printf("  - %-8s magic 0x%08X genesis %s\n", n, uint32(n.Magic()), n.GenesisHash())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(networksCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	log := logger.NewComponentLoggerFromConfig(common.ComponentCLI, cfg.Logging)
	defer log.Close()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
	}

	s, err := buildStream(ctx, cfg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bench.Run(s, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}

	log.Info("BlockStreamor stopped successfully")
	return nil
}

func buildStream(ctx context.Context, cfg *pkgconfig.Config, log *logger.Logger) (stream.BlockStream, error) {
	network, err := itypes.ParseNetwork(cfg.Source.Network)
	if err != nil {
		return nil, err
	}

	switch cfg.Source.Kind {
	case pkgconfig.SourceDisk:
		log.Infof("Streaming %s blocks from %s", network, cfg.Source.BlocksDir)

		rd, err := source.NewReadDetect(cfg.Source.BlocksDir, network, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create block file reader: %w", err)
		}
		return source.NewReorder(network, cfg.Source.MaxReorgDepth, rd, log), nil

	case pkgconfig.SourceRPC:
		info, err := rpc.InfoFromURL(cfg.Source.RPCURL)
		if err != nil {
			return nil, err
		}
		log.Infof("Streaming %s blocks from node at %s", network, info.Host)

		client, err := rpc.NewClient(info, cfg.Retry, log)
		if err != nil {
			return nil, err
		}

		var lastBlock *types.BlockPosition
		if lb := cfg.Source.LastIndexedBlock; lb != nil {
			hash, err := chainhash.NewHashFromStr(lb.Hash)
			if err != nil {
				return nil, fmt.Errorf("invalid last indexed block hash: %w", err)
			}
			lastBlock = &types.BlockPosition{Height: lb.Height, Hash: *hash}
		}

		return fetcher.New(ctx, client, lastBlock, log)

	default:
		return nil, fmt.Errorf("unknown source kind: %s", cfg.Source.Kind)
	}
}
