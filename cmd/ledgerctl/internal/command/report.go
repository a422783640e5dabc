package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

// formatter renders an amount in the ledger currency.
type formatter func(decimal.Decimal) string

func importMarkdown(report importer.Report, dryRun bool, money formatter) string {
	var b strings.Builder

	if dryRun {
		b.WriteString("# Import preview (dry run)\n\n")
	} else {
		b.WriteString("# Import\n\n")
	}

	b.WriteString("| Period | Read | New | Duplicate | Inserted | Closed | Row errors | Closing |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|\n")

	for _, key := range report.Keys() {
		run := report[key]

		closing := "-"
		if run.Figures != nil {
			closing = money(run.Figures.Closing)
		}

		status := key.String()
		if run.Failed() {
			status += " (rolled back)"
		}

		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %d | %s |\n",
			status, run.Read, run.New, run.Duplicate, run.Inserted, run.RejectedClosed, len(run.RowErrors), closing)
	}

	t := report.Totals()
	fmt.Fprintf(&b, "| **Total** | %d | %d | %d | %d | %d | %d | |\n",
		t.Read, t.New, t.Duplicate, t.Inserted, t.RejectedClosed, len(t.RowErrors))

	var notes []string

	for _, key := range report.Keys() {
		run := report[key]

		if run.Err != nil {
			notes = append(notes, fmt.Sprintf("- **%s** rolled back: %v", key, run.Err))
		}

		if run.Warning != nil {
			notes = append(notes, fmt.Sprintf("- **%s** %s", key, warningText(run.Warning, money)))
		}

		if run.CheckErr != nil {
			notes = append(notes, fmt.Sprintf("- **%s** balance check skipped: %v", key, run.CheckErr))
		}

		for _, re := range run.RowErrors {
			notes = append(notes, fmt.Sprintf("- `%s` %s", re.Ref, strings.TrimPrefix(re.Error(), re.Ref+": ")))
		}
	}

	if len(notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

func warningText(w *ledger.DiscrepancyWarning, money formatter) string {
	return fmt.Sprintf("closing balance is %s but the source states %s (difference %s)",
		money(w.Computed), money(w.Expected), money(w.Delta))
}

func figuresMarkdown(title string, f period.Figures, money formatter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Opening balance | %s |\n", money(f.Opening))
	fmt.Fprintf(&b, "| Income | %s |\n", money(f.Income))
	fmt.Fprintf(&b, "| Expense | %s |\n", money(f.Expense))
	fmt.Fprintf(&b, "| **Closing balance** | **%s** |\n", money(f.Closing))

	return b.String()
}

func periodsMarkdown(year int, periods []*period.Period, money formatter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Closed periods of %d\n\n", year)

	if len(periods) == 0 {
		b.WriteString("No period of this year is closed.\n")
		return b.String()
	}

	b.WriteString("| Period | Closed at | By | Opening | Income | Expense | Closing |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|\n")

	for _, p := range periods {
		closedAt := ""
		if p.ClosedAt != nil {
			closedAt = p.ClosedAt.Format(time.DateTime)
		}

		f := period.Figures{}
		if p.Figures != nil {
			f = *p.Figures
		}

		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			p.Key, closedAt, p.ClosedBy, money(f.Opening), money(f.Income), money(f.Expense), money(f.Closing))
	}

	return b.String()
}
