package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/config"
	"github.com/franckalain/cropguard/internal/history"
	"github.com/franckalain/cropguard/internal/kv"
	"github.com/franckalain/cropguard/internal/logging"
)

// NewRootCmd builds the cropguard command tree
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cropguard",
		Short: "Crop disease scanning with a persistent scan history",
		Long: `CropGuard classifies crop photos, keeps the most recent scans with their
treatment guidance, and serves them to the web client over a websocket and REST API.

The history commands operate directly on the configured storage backend.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON or YAML configuration file")

	// Add subcommands
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newHistoryCmd(&configPath))
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// app is the shared state every storage-backed command opens
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	medium  kv.Store
	catalog *catalog.Catalog
	history *history.Store
}

func openApp(configPath string) (*app, error) {
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Server.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	medium, err := kv.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	cat := catalog.Default()
	store := history.New(medium, cat,
		history.WithCapacity(cfg.History.Capacity),
		history.WithTimestampLayout(cfg.History.TimestampLayout),
		history.WithLogger(logger))

	return &app{cfg: cfg, logger: logger, medium: medium, catalog: cat, history: store}, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.medium.Close()
}
