package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/starnotary/api"
	"github.com/mezonai/starnotary/config"
	"github.com/mezonai/starnotary/events"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/mempool"
	"github.com/mezonai/starnotary/monitoring"
	"github.com/mezonai/starnotary/notary"
	"github.com/mezonai/starnotary/ratelimit"
	"github.com/mezonai/starnotary/verifier"
)

var listenAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the notary node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "API listen address, overrides genesis.yml self_node.listen_addr")
}

func runNode(ctx context.Context) error {
	genesis, err := config.LoadGenesisConfig(genesisConfigPath())
	if err != nil {
		return fmt.Errorf("load genesis config: %w", err)
	}
	mempoolCfg, err := config.LoadMempoolConfig(nodeConfigPath())
	if err != nil {
		return fmt.Errorf("load mempool config: %w", err)
	}
	notaryCfg, err := config.LoadNotaryConfig(nodeConfigPath())
	if err != nil {
		return fmt.Errorf("load notary config: %w", err)
	}
	apiCfg, err := config.LoadAPIConfig(nodeConfigPath())
	if err != nil {
		return fmt.Errorf("load api config: %w", err)
	}

	bc, bs, err := openChain(genesis)
	if err != nil {
		return err
	}
	defer bs.MustClose()

	if _, err := bc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize chain: %w", err)
	}
	monitoring.InitMetrics()

	bus := events.NewEventBus()
	defer bus.Close()
	events.StartAuditLog(bus)

	mp, err := mempool.NewMempool(verifier.NewDefault(),
		mempool.WithValidationWindow(mempoolCfg.ValidationWindow()),
		mempool.WithEventBus(bus),
	)
	if err != nil {
		return err
	}
	defer mp.Close()

	svc, err := notary.NewService(bc, mp,
		notary.WithEventBus(bus),
		notary.WithMaxStoryBytes(notaryCfg.MaxStoryBytes),
	)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimiterConfig{
		MaxRequests:     apiCfg.RateLimitMaxRequests,
		WindowSize:      apiCfg.RateLimitWindow(),
		CleanupInterval: 5 * time.Minute,
	})
	defer limiter.Stop()

	addr := genesis.SelfNode.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}
	server := api.NewAPIServer(svc, mp, addr, limiter)
	if err := server.Start(); err != nil {
		return err
	}
	logx.Info("CMD", fmt.Sprintf("Node %q running", genesis.ChainName))

	select {
	case <-ctx.Done():
		logx.Info("CMD", "Shutting down")
	case err := <-server.Err():
		return fmt.Errorf("api server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
