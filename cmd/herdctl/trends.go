package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

func trendsCmd(g *globals) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show each subject's latest measurement trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			return g.withApp(cmd.Context(), func(a *app) error {
				trends, err := a.service.Trends(cmd.Context(), cat)
				if err != nil {
					return err
				}
				printTrends(cmd.OutOrStdout(), trends)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryMilkYield), "measurement category")
	return cmd
}

func printTrends(out io.Writer, trends map[string]analytics.TrendResult) {
	if len(trends) == 0 {
		fmt.Fprintln(out, "no measurements")
		return
	}
	ids := make([]string, 0, len(trends))
	for id := range trends {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := newTable(out)
	fmt.Fprintln(w, "SUBJECT\tTREND\tDELTA\tLONG\tLATEST")
	for _, id := range ids {
		tr := trends[id]
		latest := "-"
		if tr.Latest != nil {
			latest = tr.Latest.Date.Format("2006-01-02") + " " + kg(tr.Latest.Kg)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, tr.Direction, optDecimal(tr.Delta), yesNo(tr.LongTrend), latest)
	}
	_ = w.Flush()
}
