package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"herdcore/pkg/analytics"
)

func growthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "growth SUBJECT",
		Short: "Show a subject's growth against the target curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app) error {
				profile, err := a.service.GrowthProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printGrowth(cmd.OutOrStdout(), profile)
				return nil
			})
		},
	}
}

func printGrowth(out io.Writer, p analytics.GrowthProfile) {
	fmt.Fprintf(out, "subject %s: age %s days\n", p.SubjectID, count(p.AgeDays))
	fmt.Fprintf(out, "current weight: %s\n", optKg(p.CurrentKg))
	fmt.Fprintf(out, "target today: %s\n", kg(p.TargetTodayKg))
	fmt.Fprintf(out, "daily gain: %s\n", optKg(p.DailyGainKg))
	fmt.Fprintf(out, "growth score: %s\n", optDecimal(p.Score))

	w := newTable(out)
	fmt.Fprintln(w, "MILESTONE\tAGE\tTARGET\tACTUAL\tSTATUS")
	for _, m := range p.Milestones {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.Name, m.AgeDays, kg(m.TargetKg), optKg(m.ActualKg), m.Status)
	}
	_ = w.Flush()
}
