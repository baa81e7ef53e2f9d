package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobboyms/corvusdb/internal/config"
	"github.com/bobboyms/corvusdb/internal/logging"
	"github.com/bobboyms/corvusdb/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveConfigFile string
var serveViper = viper.New()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Recover the store and serve the wire protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return serve(runCtx, serveViper, serveConfigFile)
	},
}

func init() {
	config.BindFlags(serveCmd, serveViper)
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "optional YAML configuration file")
}

// serve loads configuration, recovers the store, and blocks serving the
// wire protocol until ctx is canceled.
func serve(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	root := logging.New(logging.Config{
		Level:      logLevel(cfg.Server.LogLevel),
		JSONOutput: cfg.Server.LogJSON,
	})

	engine, info, err := recoverEngine(cfg, root)
	if err != nil {
		root.Error().Err(err).Msg("recovery failed")
		return err
	}
	root.Info().
		Str("snapshot_used", info.SnapshotUsed).
		Int("entries_replayed", info.EntriesReplayed).
		Int("replay_errors", info.ReplayErrors).
		Uint64("final_lsn", info.FinalLSN).
		Dur("duration", info.Duration).
		Msg("recovery complete")

	txns := newTransactionManager(engine)
	srv := newServer(cfg.Server, engine, txns, root)

	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{Addr: cfg.Server.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				root.Error().Err(err).Msg("metrics server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsServer.Close()
		}()
	}

	return srv.Run(ctx)
}
