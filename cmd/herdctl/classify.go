package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

func classifyCmd(g *globals) *cobra.Command {
	var (
		date     string
		category string
		weighted bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a same-day cohort as poor, average or outstanding",
		Long: `Classify every subject measured on one date against the cohort mean and
standard deviation. Without --date the most recent cohort is used. --weighted
scores each yield by lactation persistence (days in milk) before classifying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			return g.withApp(cmd.Context(), func(a *app) error {
				var res analytics.CohortClassification
				if date == "" {
					res, err = a.service.LatestCohort(cmd.Context(), cat, weighted)
				} else {
					day, perr := domain.ParseDay(date)
					if perr != nil {
						return fmt.Errorf("invalid --date: %w", perr)
					}
					res, err = a.service.ClassifyCohort(cmd.Context(), day, cat, weighted)
				}
				if err != nil {
					return err
				}
				printCohort(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "cohort date (default: latest)")
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryMilkYield), "measurement category")
	cmd.Flags().BoolVar(&weighted, "weighted", false, "classify lactation-weighted scores")
	return cmd
}

func printCohort(out io.Writer, res analytics.CohortClassification) {
	if len(res.Subjects) == 0 && len(res.Unscored) == 0 {
		fmt.Fprintln(out, "no cohort to classify")
		return
	}
	mean, sigma := res.Mean, res.StdDev
	if res.Weighted {
		mean, sigma = res.WeightedMean, res.WeightedStdDev
	}
	fmt.Fprintf(out, "cohort %s %s: %s subjects, mean %s, std dev %s\n",
		res.Date.Format("2006-01-02"), res.Category, count(len(res.Subjects)), decimal(mean), decimal(sigma))

	w := newTable(out)
	fmt.Fprintln(w, "SUBJECT\tCLASS\tYIELD\tDEL\tSCORE\tTREND")
	for _, s := range res.Subjects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", s.SubjectID, s.Class, kg(s.RawKg), s.DaysInMilk, decimal(s.Score), s.Trend.Direction)
	}
	_ = w.Flush()

	for _, bucket := range res.Distribution {
		fmt.Fprintf(out, "%s: %s\n", bucket.Class, count(bucket.Count))
	}
	if len(res.Unscored) > 0 {
		fmt.Fprintf(out, "unscored (no lactation): %s\n", list(res.Unscored))
	}
}
