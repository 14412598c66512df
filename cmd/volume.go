package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/hypolab/internal/experiment"
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Report whether an owner has enough volume to run an experiment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		owner, _ := cmd.Flags().GetString("owner")
		format, _ := cmd.Flags().GetString("format")
		unit := cfg.Volume.Unit
		if cmd.Flags().Changed("unit") {
			unit, _ = cmd.Flags().GetString("unit")
		}
		minimum := cfg.Volume.Minimum
		if cmd.Flags().Changed("minimum") {
			minimum, _ = cmd.Flags().GetFloat64("minimum")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := experiment.NewService(st, nil)
		snap, err := svc.Volume(ctx, owner, unit, minimum)
		if err != nil {
			return err
		}

		return writeOutput(os.Stdout, format, snap, func(w io.Writer) { formatVolume(w, snap) })
	},
}

func init() {
	volumeCmd.Flags().String("owner", "", "owner id (required)")
	volumeCmd.Flags().String("unit", "", "videos, sessions, purchases, leads or a numeric metric (default from config)")
	volumeCmd.Flags().Float64("minimum", 0, "minimum volume required (default from config)")
	volumeCmd.Flags().String("format", formatJSON, "output format: json, yaml or table")
	_ = volumeCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(volumeCmd)
}
