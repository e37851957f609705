package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"herdcore/pkg/analytics"
)

func candidatesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "List subjects ready to be dried off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd.Context(), func(a *app) error {
				set, err := a.service.DryOffCandidates(cmd.Context())
				if err != nil {
					return err
				}
				printCandidates(cmd.OutOrStdout(), set)
				return nil
			})
		},
	}
}

func printCandidates(out io.Writer, set analytics.CandidateSet) {
	if len(set.SubjectIDs) == 0 {
		fmt.Fprintln(out, "no dry-off candidates")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "SUBJECT\tREASONS")
	for _, id := range set.SubjectIDs {
		fmt.Fprintf(w, "%s\t%s\n", id, strings.Join(set.Reasons[id], ", "))
	}
	_ = w.Flush()
}
