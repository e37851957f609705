package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

func rollupCmd(g *globals) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Summarise measurements by calendar month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			return g.withApp(cmd.Context(), func(a *app) error {
				buckets, err := a.service.Rollup(cmd.Context(), cat)
				if err != nil {
					return err
				}
				printRollup(cmd.OutOrStdout(), buckets)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryMilkYield), "measurement category")
	return cmd
}

func printRollup(out io.Writer, buckets []analytics.PeriodBucket) {
	if len(buckets) == 0 {
		fmt.Fprintln(out, "no measurements")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "PERIOD\tEVENTS\tSUBJECTS\tTOTAL\tAVERAGE\tAVG CHANGE\tSUBJECT CHANGE\tENTERING\tEXITING")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Period, count(b.EventCount), count(b.SubjectCount), kg(b.TotalKg), kg(b.AverageKg),
			percent(b.AvgChangePct), percent(b.SubjectCountChangePct), list(b.Entering), list(b.Exiting))
	}
	_ = w.Flush()
}
