package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the videos table and add any missing metric columns",
	Long:  "Idempotent: running migrate repeatedly never errors and never alters existing data.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("migration complete",
			zap.String("driver", cfg.Store.Driver),
			zap.Int("metric_columns", len(model.DefaultRegistry.Columns())),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
