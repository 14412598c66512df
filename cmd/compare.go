package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/hypolab/internal/experiment"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two videos on a primary metric",
	Long:  "Runs the frequentist, Bayesian and sequential analyses for video B against video A and prints the comparison result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("experiment"); err != nil {
			return err
		}

		owner, _ := cmd.Flags().GetString("owner")
		aID, _ := cmd.Flags().GetString("a")
		bID, _ := cmd.Flags().GetString("b")
		format, _ := cmd.Flags().GetString("format")

		ccfg := compareDefaults()
		flags := cmd.Flags()
		if flags.Changed("metric") {
			ccfg.PrimaryMetric, _ = flags.GetString("metric")
		}
		if flags.Changed("alpha") {
			ccfg.Alpha, _ = flags.GetFloat64("alpha")
		}
		if flags.Changed("mde") {
			ccfg.MDE, _ = flags.GetFloat64("mde")
		}
		if flags.Changed("min-exposure") {
			ccfg.MinExposure, _ = flags.GetFloat64("min-exposure")
		}
		if flags.Changed("method") {
			m, _ := flags.GetString("method")
			ccfg.Method = experiment.Method(m)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := experiment.NewService(st, experiment.NewEngine(cfg.Experiment.MonteCarloDraws, nil))
		res, err := svc.Compare(ctx, owner, aID, bID, ccfg)
		if err != nil {
			return err
		}

		return writeOutput(os.Stdout, format, res, func(w io.Writer) { formatComparison(w, res) })
	},
}

func init() {
	compareCmd.Flags().String("owner", "", "owner id of both videos (required)")
	compareCmd.Flags().String("a", "", "video id of the control arm (required)")
	compareCmd.Flags().String("b", "", "video id of the variant arm (required)")
	compareCmd.Flags().String("metric", "", "primary metric (default from config)")
	compareCmd.Flags().Float64("alpha", 0, "significance level (default from config)")
	compareCmd.Flags().Float64("mde", 0, "minimum detectable effect as a relative uplift (default from config)")
	compareCmd.Flags().Float64("min-exposure", 0, "views required per arm before deciding (default from config)")
	compareCmd.Flags().String("method", "", "auto, frequentist, bayesian or sequential (default from config)")
	compareCmd.Flags().String("format", formatJSON, "output format: json, yaml or table")
	_ = compareCmd.MarkFlagRequired("owner")
	_ = compareCmd.MarkFlagRequired("a")
	_ = compareCmd.MarkFlagRequired("b")
	rootCmd.AddCommand(compareCmd)
}
