package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"hermannm.dev/devlog"
)

var (
	configPath string
	logLevel   slog.LevelVar
	logFormat  string
	verbose    bool
)

// rootCmd follows kgiusti-go-fdo-server/cmd's cobra tree shape (persistent
// flags declared here and bound to the configuration by config.Load; the
// serve and diag PreRunE hooks call setupLogging, which installs the devlog
// console handler), with the -log-format/-v naming kept from the teacher's
// own emulator/main.go flag convention.
var rootCmd = &cobra.Command{
	Use:   "accessd",
	Short: "NTAG424 access-control terminal core",
	Long: `accessd runs the verifier pipeline and session state machine that
turn NTAG424 tag taps into authorized machine sessions.`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "v", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(printConfigCmd)
}

func setupLogging() {
	logLevel.Set(slog.LevelInfo)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))
		return
	}
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{Level: &logLevel})))
}
