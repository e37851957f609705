package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"herdcore/internal/adapters/reports"
	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

func reportCmd(g *globals) *cobra.Command {
	var (
		weighted bool
		export   bool
		formats  []string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the herd and optionally export the full report",
		Long: `Evaluate the latest milk cohort, trends, rollup, growth profiles and dry-off
candidates from one snapshot. With --export the report is rendered in each
--format and written to the configured blob store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed := make([]reports.Format, 0, len(formats))
			for _, raw := range formats {
				f, err := reports.ParseFormat(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, f)
			}
			return g.withApp(cmd.Context(), func(a *app) error {
				report, err := a.service.HerdReport(cmd.Context(), weighted)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printReport(out, report)
				if !export {
					return nil
				}
				exporter, err := a.exporter(cmd.Context())
				if err != nil {
					return err
				}
				artifacts, err := exporter.Export(cmd.Context(), report, parsed...)
				printArtifacts(out, artifacts)
				if err != nil {
					return fmt.Errorf("export report: %w", err)
				}
				a.logger.Info("report exported", "artifacts", len(artifacts))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&weighted, "weighted", false, "classify lactation-weighted scores")
	cmd.Flags().BoolVar(&export, "export", false, "write the report to the blob store")
	cmd.Flags().StringSliceVar(&formats, "format", []string{string(reports.FormatJSON), string(reports.FormatCSV)}, "export formats (json, csv)")
	return cmd
}

func printReport(out io.Writer, r core.HerdReport) {
	fmt.Fprintf(out, "herd report as of %s: %s subjects\n", r.AsOf.Format("2006-01-02"), count(r.SubjectCount))

	stages := make([]string, 0, len(r.Lifecycle))
	for stage := range r.Lifecycle {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)
	for _, stage := range stages {
		fmt.Fprintf(out, "  %s: %s\n", stage, count(r.Lifecycle[domain.LifecycleStage(stage)]))
	}

	if len(r.Cohort.Subjects) > 0 {
		fmt.Fprintf(out, "latest cohort %s:", r.Cohort.Date.Format("2006-01-02"))
		for _, bucket := range r.Cohort.Distribution {
			fmt.Fprintf(out, " %s %s", bucket.Class, count(bucket.Count))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "months rolled up: %s\n", count(len(r.Rollup)))
	fmt.Fprintf(out, "growth profiles: %s\n", count(len(r.Growth)))
	fmt.Fprintf(out, "dry-off candidates: %s\n", list(r.Candidates.SubjectIDs))
}

func printArtifacts(out io.Writer, artifacts []reports.Artifact) {
	if len(artifacts) == 0 {
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "EXPORT\tFORMAT\tKEY\tSIZE\tURL")
	for _, art := range artifacts {
		url := art.URL
		if url == "" {
			url = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", art.ID, art.Format, art.Key, humanize.Bytes(uint64(art.SizeBytes)), url)
	}
	_ = w.Flush()
}
