package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/werkstattwaedi/accesscore/internal/config"
)

var printConfigCmd = &cobra.Command{
	Use:   "print-config",
	Short: "Load and print the effective configuration, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		fmt.Printf("confirmation_timeout: %s\n", cfg.ConfirmationTimeout)
		fmt.Printf("hold_duration: %s\n", cfg.HoldDuration)
		fmt.Printf("cache_capacity: %d\n", cfg.CacheCapacity)
		fmt.Printf("cache_ttl: %s\n", cfg.CacheTTL)
		fmt.Printf("command_timeout: %s\n", cfg.CommandTimeout)
		fmt.Printf("log_format: %s\n", cfg.LogFormat)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("reader_index: %d\n", cfg.ReaderIndex)
		fmt.Printf("cloud_endpoint: %s\n", cfg.CloudEndpoint)
		fmt.Printf("secrets_path: %s\n", cfg.SecretsPath)
		return nil
	},
}
