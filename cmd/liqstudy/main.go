package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/liqstudy/internal/binance"
	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/logger"
	"github.com/rewired-gh/liqstudy/internal/pipeline"
	"github.com/rewired-gh/liqstudy/internal/storage"
	"github.com/rewired-gh/liqstudy/internal/telegram"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "liqstudy",
	Short: "Liquidation flow vs. forward returns study",
	Long: `Collects liquidation-bot messages and price bars, aggregates liquidations into
fixed-width buckets, joins them with prices and measures how liquidation activity
relates to subsequent returns.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configPath != "" {
			logger.Info("Configuration loaded from %s", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.AddCommand(fetchCmd, aggregateCmd, buildCmd, analyzeCmd, runCmd, runsCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// sources selects the collaborators a command needs.
type sources struct {
	messages bool
	prices   bool
}

// newRunner opens the archive and the requested clients. The returned close function
// releases the archive.
func newRunner(need sources) (*pipeline.Runner, func(), error) {
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}

	deps := pipeline.Deps{Store: store}

	if cfg.Telegram.Notify || (need.messages && cfg.Telegram.Enabled) {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		telegramClient.SetPollTimeout(cfg.Telegram.PollTimeout)
		logger.Info("Telegram client initialized successfully")

		if cfg.Telegram.Enabled {
			deps.Messages = telegramClient
		}
		if cfg.Telegram.Notify {
			deps.Notifier = telegramClient
		}
	} else {
		logger.Debug("Telegram collection and notifications disabled")
	}

	if need.prices {
		deps.Prices = binance.NewClient(cfg.Binance)
	}

	return pipeline.New(cfg, deps), closeStore, nil
}
