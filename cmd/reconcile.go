package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hypolab/internal/fetcher"
	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply a bulk metric update from a JSON, CSV or XLSX file",
	Long: "Reads updates from --file, resolves each row against the owner's videos and applies them in one transaction per chunk. " +
		"Files larger than reconcile.max_batch_size are split into chunks committed one after another.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		owner, _ := cmd.Flags().GetString("owner")
		file, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		sheet, _ := cmd.Flags().GetString("sheet")

		updates, err := fetcher.ReadUpdatesFile(ctx, file, fetcher.ReadOptions{Sheet: sheet})
		if err != nil {
			return eris.Wrap(err, "reconcile: read file")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := reconcile.NewService(st, model.DefaultRegistry, cfg.Reconcile.MaxBatchSize)
		report, err := runChunks(ctx, svc, owner, updates, dryRun, cfg.Reconcile.MaxBatchSize, chunkLimiter(cfg.Reconcile.ChunksPerSecond))
		if err != nil {
			return err
		}

		zap.L().Info("reconcile complete",
			zap.String("file", file),
			zap.Int("chunks", len(report.RunIDs)),
			zap.Int("received", report.Summary.Received),
			zap.Int("updated", report.Summary.Updated),
		)
		return writeReport(os.Stdout, report)
	},
}

// fileReport merges the responses of every chunk. Result input indexes are
// positions in the whole file.
type fileReport struct {
	OK       bool                `json:"ok"`
	RunIDs   []string            `json:"runIds"`
	DryRun   bool                `json:"dryRun"`
	Summary  reconcile.Summary   `json:"summary"`
	Warnings []string            `json:"warnings"`
	Results  []reconcile.Outcome `json:"results"`
}

func chunkLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// splitChunks cuts updates into consecutive slices of at most size rows.
func splitChunks(updates []model.RawUpdate, size int) [][]model.RawUpdate {
	if size <= 0 || len(updates) <= size {
		return [][]model.RawUpdate{updates}
	}
	chunks := make([][]model.RawUpdate, 0, (len(updates)+size-1)/size)
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		chunks = append(chunks, updates[start:end])
	}
	return chunks
}

// runChunks reconciles each chunk in order, waiting on limiter before each
// one. A failing chunk stops the run; earlier chunks stay committed.
func runChunks(ctx context.Context, svc *reconcile.Service, owner string, updates []model.RawUpdate, dryRun bool, size int, limiter *rate.Limiter) (*fileReport, error) {
	report := &fileReport{OK: true, DryRun: dryRun, Warnings: []string{}, Results: []reconcile.Outcome{}}

	offset := 0
	for i, chunk := range splitChunks(updates, size) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "reconcile: wait for chunk slot")
		}

		resp, err := svc.Run(ctx, owner, &reconcile.Request{Updates: chunk, DryRun: dryRun})
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: chunk %d (rows %d-%d)", i+1, offset, offset+len(chunk)-1)
		}

		report.RunIDs = append(report.RunIDs, resp.RunID)
		report.Summary.Received += resp.Summary.Received
		report.Summary.Valid += resp.Summary.Valid
		report.Summary.Matched += resp.Summary.Matched
		report.Summary.Updated += resp.Summary.Updated
		report.Summary.Skipped += resp.Summary.Skipped
		for _, w := range resp.Warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("chunk %d: %s", i+1, w))
		}
		for _, o := range resp.Results {
			o.InputIndex += offset
			report.Results = append(report.Results, o)
		}
		offset += len(chunk)
	}
	return report, nil
}

func writeReport(w io.Writer, report *fileReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func init() {
	reconcileCmd.Flags().String("owner", "", "owner id whose videos are updated (required)")
	reconcileCmd.Flags().String("file", "", "path to a .json, .csv, .tsv or .xlsx file (required)")
	reconcileCmd.Flags().Bool("dry-run", false, "resolve and validate without writing")
	reconcileCmd.Flags().String("sheet", "", "worksheet name for .xlsx files (default first sheet)")
	_ = reconcileCmd.MarkFlagRequired("owner")
	_ = reconcileCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(reconcileCmd)
}
