package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"salestrends/internal/report"
)

// Plain-text table rendering for the four reports. Result rows are consumable
// as-is by external tooling; this is just the console view.

func newTable(w io.Writer, title string) *tabwriter.Writer {
	fmt.Fprintf(w, "\n%s\n", title)
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderMonthly(w io.Writer, title string, rows []report.MonthlyRow) {
	tw := newTable(w, title)
	fmt.Fprintln(tw, "year\tmonth\tmonthly_revenue\torder_count")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%02d\t%.2f\t%d\n", r.Year, r.Month, r.Revenue, r.OrderCount)
	}
	tw.Flush()
}

func renderTopPeriods(w io.Writer, title string, rows []report.TopPeriodRow) {
	tw := newTable(w, title)
	fmt.Fprintln(tw, "year\tmonth\tmonthly_revenue")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%02d\t%.2f\n", r.Year, r.Month, r.Revenue)
	}
	tw.Flush()
}

func renderNullSensitivity(w io.Writer, title string, rows []report.NullSensitivityRow) {
	tw := newTable(w, title)
	fmt.Fprintln(tw, "year\tmonth\tsum_skipping_nulls\tsum_treating_nulls_as_zero\ttotal_orders\torders_with_amount")
	for _, r := range rows {
		skipping := "NULL"
		if r.SumSkippingNulls.Valid {
			skipping = fmt.Sprintf("%.2f", r.SumSkippingNulls.Float64)
		}
		fmt.Fprintf(tw, "%d\t%02d\t%s\t%.2f\t%d\t%d\n",
			r.Year, r.Month, skipping, r.SumTreatingNullsAsZero, r.TotalOrders, r.OrdersWithAmount)
	}
	tw.Flush()
}
