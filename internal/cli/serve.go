package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/kv"
	"github.com/franckalain/cropguard/internal/ml"
	"github.com/franckalain/cropguard/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan server",
		Long: `Starts the websocket and REST server and serves the static web client.

With the file storage backend, writes made by other processes sharing the
same file are pushed to connected clients as history_changed events.`,
		Example: `  # Start with config/config.json
  cropguard serve

  # Override the configured port
  cropguard serve --config config.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if port != "" {
				a.cfg.Server.Port = port
			}

			classifier, err := ml.NewClassifier(a.cfg.ML.Type, a.cfg.ML.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			if err := classifier.Load(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load classifier: %w", err)
			}
			defer classifier.Close()
			a.logger.Info("Classifier ready", zap.String("type", a.cfg.ML.Type))

			srv := server.New(a.history, a.catalog, classifier, a.logger,
				server.WithStaticDir(a.cfg.Server.StaticDir))
			if w, ok := a.medium.(kv.Watcher); ok {
				srv.Watch(w)
			}

			return srv.Start(cmd.Context(), ":"+a.cfg.Server.Port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")

	return cmd
}
