package command

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var (
	sep = period.Key{Year: 2025, Month: time.September}
	oct = period.Key{Year: 2025, Month: time.October}
)

func plain(d decimal.Decimal) string { return d.StringFixed(2) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestImportMarkdown(t *testing.T) {
	f := period.NewFigures(dec("1000"), dec("200"), dec("120"))

	report := importer.Report{
		oct: {
			Period: oct,
			Read:   2,
			Err:    &importer.TransactionError{Period: oct, Err: errors.New("connection reset")},
		},
		sep: {
			Period:    sep,
			Read:      4,
			New:       2,
			Duplicate: 1,
			Inserted:  2,
			RowErrors: []*importer.RowError{{Ref: "tesouraria:9", Field: "amount", Reason: "invalid amount"}},
			Figures:   &f,
			Warning:   ledger.DefaultValidator().Validate(f.Closing, dec("1075")),
		},
	}

	md := importMarkdown(report, false, plain)

	assert.Contains(t, md, "# Import\n")
	assert.Contains(t, md, "| 2025-09 | 4 | 2 | 1 | 2 | 0 | 1 | 1080.00 |")
	assert.Contains(t, md, "| 2025-10 (rolled back) | 2 | 0 | 0 | 0 | 0 | 0 | - |")
	assert.Contains(t, md, "| **Total** | 6 | 2 | 1 | 2 | 0 | 1 | |")
	assert.Contains(t, md, "closing balance is 1080.00 but the source states 1075.00 (difference 5.00)")
	assert.Contains(t, md, "- `tesouraria:9` amount invalid amount")
	assert.Contains(t, md, "**2025-10** rolled back")
	assert.Less(t, strings.Index(md, "2025-09 |"), strings.Index(md, "2025-10 (rolled back)"))
}

func TestImportMarkdown_DryRunWithoutNotes(t *testing.T) {
	md := importMarkdown(importer.Report{sep: {Period: sep, Read: 1, New: 1, DryRun: true}}, true, plain)

	assert.Contains(t, md, "dry run")
	assert.NotContains(t, md, "## Notes")
}

func TestPeriodsMarkdown(t *testing.T) {
	closedAt := time.Date(2025, 10, 2, 9, 30, 0, 0, time.UTC)
	f := period.NewFigures(dec("100"), dec("200"), dec("120"))

	md := periodsMarkdown(2025, []*period.Period{{Key: sep, Closed: true, ClosedAt: &closedAt, ClosedBy: "treasurer", Figures: &f}}, plain)
	assert.Contains(t, md, "| 2025-09 | 2025-10-02 09:30:00 | treasurer | 100.00 | 200.00 | 120.00 | 180.00 |")

	assert.Contains(t, periodsMarkdown(2024, nil, plain), "No period of this year is closed.")
}

func TestFiguresMarkdown(t *testing.T) {
	md := figuresMarkdown("Ledger 2025-09", period.NewFigures(dec("100"), dec("50"), dec("30")), plain)

	assert.Contains(t, md, "# Ledger 2025-09")
	assert.Contains(t, md, "| **Closing balance** | **120.00** |")
}

