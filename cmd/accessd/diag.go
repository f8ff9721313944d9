package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/werkstattwaedi/accesscore/internal/config"
	"github.com/werkstattwaedi/accesscore/internal/diag"
	"github.com/werkstattwaedi/accesscore/internal/pcsc"
	"github.com/werkstattwaedi/accesscore/pkg/ntag424"
)

var diagSlots []uint8

// diagCmd is field-diagnostic tooling only: it reads a tag's version
// information and probes authentication slots, neither of which the
// verifier's authorization path is allowed to do (internal/diag's package
// doc explains why). It is a separate, explicitly-invoked command so a
// terminal operator commissioning hardware never confuses it with serve.
var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Read tag version and probe authentication slots on a connected tag",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("diag: loading config: %w", err)
		}

		conn, err := pcsc.Connect(cfg.ReaderIndex)
		if err != nil {
			return fmt.Errorf("diag: connecting to reader: %w", err)
		}
		defer conn.Close()

		version, err := diag.GetVersion(conn)
		if err != nil {
			return fmt.Errorf("diag: GetVersion: %w", err)
		}
		fmt.Printf("uid: %X\n", version.UID)
		fmt.Printf("hw: vendor=%d type=%d subtype=%d ver=%d.%d storage=%d protocol=%d\n",
			version.HWVendorID, version.HWType, version.HWSubType, version.HWMajorVer, version.HWMinorVer, version.HWStorageSize, version.HWProtocol)
		fmt.Printf("sw: vendor=%d type=%d subtype=%d ver=%d.%d storage=%d protocol=%d\n",
			version.SWVendorID, version.SWType, version.SWSubType, version.SWMajorVer, version.SWMinorVer, version.SWStorageSize, version.SWProtocol)
		fmt.Printf("batch: %X  fab_key: %d  prod: 20%02d week %d\n",
			version.BatchNo, version.FabKey, version.ProdYear, version.ProdWeek)

		if len(diagSlots) == 0 {
			return nil
		}

		secrets := config.NewFileSecrets(cfg.SecretsPath)
		key, err := secrets.GetNtagTerminalKey()
		if err != nil {
			return fmt.Errorf("diag: loading terminal key: %w", err)
		}

		tag := ntag424.NewTag(conn)
		if err := tag.SelectApplication(); err != nil {
			return fmt.Errorf("diag: SelectApplication: %w", err)
		}
		for _, r := range diag.DiagnoseAuthSlots(tag, key, diagSlots) {
			if r.Success {
				fmt.Printf("slot %d: ok\n", r.Slot)
			} else {
				fmt.Printf("slot %d: failed: %v\n", r.Slot, r.Err)
			}
		}
		return nil
	},
}

func init() {
	diagCmd.Flags().Uint8SliceVar(&diagSlots, "auth-slot", nil, "Key slot(s) to probe authentication against (repeatable)")
	rootCmd.AddCommand(diagCmd)
}
