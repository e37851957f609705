package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"herdcore/pkg/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func kg(v float64) string {
	return humanize.FormatFloat("#,###.##", v) + " kg"
}

func optKg(v *float64) string {
	if v == nil {
		return "-"
	}
	return kg(*v)
}

func decimal(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func optDecimal(v *float64) string {
	if v == nil {
		return "-"
	}
	return decimal(*v)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.FormatFloat("#,###.#", *v) + "%"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func list(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func parseCategory(raw string) (domain.MeasurementCategory, error) {
	switch c := domain.MeasurementCategory(strings.ToLower(strings.TrimSpace(raw))); c {
	case domain.CategoryMilkYield, domain.CategoryBodyWeight:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q (want %s or %s)", raw, domain.CategoryMilkYield, domain.CategoryBodyWeight)
	}
}
