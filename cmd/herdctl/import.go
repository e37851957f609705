package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"herdcore/pkg/domain"
)

func importCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.json",
		Short: "Import subject, measurement and lactation records",
		Long: `Import a JSON record batch with "subjects", "measurements" and "lactations"
arrays. Use "-" to read from stdin. Invalid records are reported and skipped;
records whose id already exists replace the stored version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			records, parsed := batch.Normalize()
			return g.withApp(cmd.Context(), func(a *app) error {
				stored, err := a.service.Import(cmd.Context(), records)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "imported %s subjects, %s measurements, %s lactations\n",
					count(stored.Subjects), count(stored.Measurements), count(stored.Lactations))
				if n := parsed.Superseded + stored.Superseded; n > 0 {
					fmt.Fprintf(out, "superseded %s same-day re-entries\n", count(n))
				}
				if n := parsed.ClosedLactations + stored.ClosedLactations; n > 0 {
					fmt.Fprintf(out, "closed %s overlapping lactations\n", count(n))
				}
				issues := append(parsed.Issues, stored.Issues...)
				if len(issues) == 0 {
					return nil
				}
				fmt.Fprintf(out, "%s records rejected or adjusted:\n", count(len(issues)))
				for _, issue := range issues {
					fmt.Fprintf(out, "  %s\n", issue)
				}
				return nil
			})
		},
	}
}

func readBatch(stdin io.Reader, path string) (domain.RecordBatch, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.RecordBatch{}, fmt.Errorf("read records: %w", err)
	}
	var batch domain.RecordBatch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return domain.RecordBatch{}, fmt.Errorf("decode records %s: %w", path, err)
	}
	return batch, nil
}
