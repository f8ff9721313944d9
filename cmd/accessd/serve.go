package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/werkstattwaedi/accesscore/internal/cloud"
	"github.com/werkstattwaedi/accesscore/internal/config"
	"github.com/werkstattwaedi/accesscore/internal/pcsc"
	"github.com/werkstattwaedi/accesscore/internal/usagesink"
	"github.com/werkstattwaedi/accesscore/pkg/session"
	"github.com/werkstattwaedi/accesscore/pkg/verifier"
)

var usageDBPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verifier pipeline and session FSM against a live reader",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("serve: loading config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		reader := pcsc.NewReader(cfg.ReaderIndex, cfg.CommandTimeout)
		secrets := config.NewFileSecrets(cfg.SecretsPath)
		cloudClient := cloud.New(cfg.CloudEndpoint)

		v := verifier.New(reader, secrets, cloudClient, cfg.CacheCapacity, cfg.CacheTTL)

		fsm := session.New(cfg.ConfirmationTimeout, cfg.HoldDuration)
		if err := v.AddObserver(session.NewVerifierBridge(fsm)); err != nil {
			return fmt.Errorf("serve: wiring verifier bridge: %w", err)
		}

		if usageDBPath != "" {
			sink, err := usagesink.Open(usageDBPath)
			if err != nil {
				return fmt.Errorf("serve: opening usage sink: %w", err)
			}
			defer sink.Close()
			if err := fsm.AddObserver(sink); err != nil {
				return fmt.Errorf("serve: wiring usage sink: %w", err)
			}
		}

		pump := session.NewEventPump(fsm)

		slog.Info("accessd starting", "reader_index", cfg.ReaderIndex, "cloud_endpoint", cfg.CloudEndpoint)

		go pump.Run(ctx)
		v.Run(ctx)

		slog.Info("accessd stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&usageDBPath, "usage-db", "", "Path to sqlite usage log database (empty disables persistence)")
}
