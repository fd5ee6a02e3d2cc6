package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/altsecops/findings-console/internal/application/triage"
	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

var (
	exportProduct  int64
	exportSeverity string
	exportActive   bool
	exportVerdict  string
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch all pages for a filter and write findings-export.csv",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Int64Var(&exportProduct, "product", 0, "product id to filter by")
	exportCmd.Flags().StringVar(&exportSeverity, "severity", "", "severity to filter by")
	exportCmd.Flags().BoolVar(&exportActive, "active-only", false, "only active findings")
	exportCmd.Flags().StringVar(&exportVerdict, "verdict", string(triage.VerdictAll), "client-side verdict filter (all, true_positive, false_positive, uncertain)")
	exportCmd.Flags().StringVar(&exportOut, "out", triage.ExportFilename, "output path, - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	filter := domain.Filter{
		ProductID: exportProduct,
		Severity:  domain.Severity(exportSeverity),
	}
	if exportActive {
		t := true
		filter.StatusEnabled = &t
	}

	if err := eng.svc.SetFilter(ctx, filter); err != nil {
		return err
	}
	if err := eng.svc.RefreshPipelines(ctx, exportProduct); err != nil {
		log.Warn("pipeline refresh failed, exporting without verdicts", "err", err)
	}

	// Stage in memory first: an empty view must not leave a file behind.
	var buf bytes.Buffer
	if err := drainAndExport(ctx, eng.svc, triage.VerdictFilter(exportVerdict), &buf); err != nil {
		return err
	}
	if exportOut == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(exportOut, buf.Bytes(), 0o644); err != nil {
		return err
	}
	snap := eng.svc.View()
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d findings to %s\n", len(snap.Items), exportOut)
	return nil
}

// drainAndExport fetches every remaining page of the active session, then
// applies the verdict filter and serializes the view. The verdict filter is
// deliberately applied after the drain: the windowing trigger keys off
// visible items, and a filtered-empty view would stop the loop with matching
// findings still sitting on unfetched pages.
func drainAndExport(ctx context.Context, svc *triage.Service, verdict triage.VerdictFilter, w io.Writer) error {
	if !verdict.Valid() {
		return &domain.ValidationError{Field: "verdict", Reason: fmt.Sprintf("unknown verdict filter %q", verdict)}
	}

	for {
		snap := svc.View()
		if !snap.HasMore {
			break
		}
		triggered, err := svc.OnWindow(ctx, snap.Loaded-1)
		if err != nil {
			return err
		}
		if !triggered {
			break
		}
	}

	if err := svc.SetVerdictFilter(verdict); err != nil {
		return err
	}
	return svc.ExportCSV(w)
}
