package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hypolab/internal/experiment"
)

// Output formats accepted by --format.
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// writeOutput renders v as json or yaml. Table output is handled by the
// caller-supplied table func.
func writeOutput(w io.Writer, format string, v any, table func(io.Writer)) error {
	switch strings.ToLower(format) {
	case "", formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so yaml keys match the JSON field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "output: marshal")
		}
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "output: convert to yaml")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "output: encode yaml")
		}
		return enc.Close()
	case formatTable:
		table(w)
		return nil
	default:
		return eris.Errorf("unknown output format %q (want json, yaml or table)", format)
	}
}

// formatComparison writes a compact comparison summary to out.
func formatComparison(out io.Writer, res *experiment.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tA\tB\tDELTA\tP_VALUE\tP(B>A)\tDECISION")
	_, _ = fmt.Fprintln(w, "------\t-\t-\t-----\t-------\t------\t--------")
	_, _ = fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%+.4f\t%.4f\t%.3f\t%s\n",
		res.Metric,
		res.Values.A,
		res.Values.B,
		res.Frequentist.Delta,
		res.Frequentist.PValue,
		res.Bayesian.PBGreaterA,
		res.Decision,
	)
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%s\n", res.Verdict)
	if len(res.QualityFlags) > 0 {
		_, _ = fmt.Fprintf(out, "Quality flags: %s\n", strings.Join(res.QualityFlags, ", "))
	}
	for _, r := range res.Recommendations {
		_, _ = fmt.Fprintf(out, "  - %s\n", r)
	}
}

// formatVolume writes a volume snapshot to out.
func formatVolume(out io.Writer, snap *experiment.VolumeSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Unit:\t%s\n", snap.Unit)
	_, _ = fmt.Fprintf(w, "Current:\t%g\n", snap.Current)
	_, _ = fmt.Fprintf(w, "Minimum:\t%g\n", snap.Minimum)
	_, _ = fmt.Fprintf(w, "Samples:\t%d\n", snap.CountSamples)
	_, _ = fmt.Fprintf(w, "Meets minimum:\t%t\n", snap.MeetsMinimum)
	_ = w.Flush()
}
