// Package sheet reads spreadsheet exports (the treasury sheet and the CGD
// bank formats) into import batches. The layout is detected from the header
// row, which may be preceded by any number of metadata lines.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/tesouraria/internal/encoding"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var dateLayouts = []string{"02-01-2006", "02/01/2006", "2006-01-02"}

// openingPrefixes mark rows carrying the balance brought forward.
var openingPrefixes = []string{"saldo inicial", "saldo anterior", "saldo transitado"}

// noisePrefixes mark undated summary rows.
var noisePrefixes = []string{"total", "totais", "subtotal", "soma"}

type Parser struct {
	profiles []Profile
}

// New returns a parser that detects among the given profiles, or among all
// known profiles when none is given.
func New(profiles ...Profile) *Parser {
	if len(profiles) == 0 {
		profiles = All()
	}

	return &Parser{profiles: profiles}
}

func (p *Parser) Parse(r io.Reader) ([]importer.Batch, error) {
	charset, utf8r, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := p.detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching format found: expected columns for %s", p.names())
	}

	slog.Debug("detected sheet layout", "profile", profile.Name, "charset", charset, "rows", len(rows)-headerIdx-1)

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
}

func (p *Parser) names() string {
	names := make([]string, len(p.profiles))
	for i, pr := range p.profiles {
		names[i] = pr.Name
	}

	return strings.Join(names, ", ")
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

func (c colIndex) get(name string) int {
	if name == "" {
		return -1
	}

	if i, ok := c[name]; ok {
		return i
	}

	return -1
}

// detectProfile scans rows for a header that matches a known profile.
// Returns the matched profile, column index map, and header row index.
func (p *Parser) detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range p.profiles {
			if matchesProfile(&p.profiles[i], cols) {
				return &p.profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

// matchesProfile checks if all required columns of a profile are present.
func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// balanceRow is a running balance seen on a dated row.
type balanceRow struct {
	date    time.Time
	order   int
	balance decimal.Decimal
}

// parseRows extracts candidates from the data rows using the matched profile.
// firstRow is the 0-based record index of the first data row; references
// are 1-based record numbers (blank lines are not counted).
// Rows without any amount are layout noise (page footers, totals, blank
// lines) and are skipped; rows with an amount but unusable fields become
// row errors.
func parseRows(p *Profile, cols colIndex, rows [][]string, firstRow int) ([]importer.Batch, error) {
	dateIdx := cols.get(p.DateCol)
	descIdx := cols.get(p.DescCol)
	balanceIdx := cols.get(p.BalanceCol)

	batches := make(map[period.Key]*importer.Batch)
	balances := make(map[period.Key][]balanceRow)

	var orphans []*importer.RowError

	batchOf := func(k period.Key) *importer.Batch {
		b, ok := batches[k]
		if !ok {
			b = &importer.Batch{Period: k}
			batches[k] = b
		}

		return b
	}

	var lastKey *period.Key

	for i, row := range rows {
		rowNum := firstRow + i + 1
		ref := fmt.Sprintf("%s:%d", p.Name, rowNum)

		desc := cellValue(row, descIdx)
		if cellValue(row, dateIdx) == "" && isNoise(desc) {
			continue
		}

		opening := isOpening(desc)

		amount, kind, amountErr := parseAmount(p, cols, row)

		balance, hasBalance := parseBalance(row, balanceIdx)

		if opening {
			amount, kind, amountErr = openingAmount(amount, kind, amountErr, balance, hasBalance)
		}

		if errors.Is(amountErr, errNoAmount) {
			continue
		}

		date, dateErr := parseDate(cellValue(row, dateIdx))

		var rowErr *importer.RowError

		switch {
		case dateErr != nil:
			rowErr = &importer.RowError{Ref: ref, Field: "date", Reason: dateErr.Error()}
		case amountErr != nil:
			rowErr = &importer.RowError{Ref: ref, Field: "amount", Reason: amountErr.Error()}
		case desc == "":
			rowErr = &importer.RowError{Ref: ref, Field: "concept", Reason: "is required"}
		}

		if rowErr != nil {
			if dateErr == nil {
				b := batchOf(period.KeyOf(date))
				b.RowErrors = append(b.RowErrors, rowErr)
			} else if lastKey != nil {
				b := batchOf(*lastKey)
				b.RowErrors = append(b.RowErrors, rowErr)
			} else {
				orphans = append(orphans, rowErr)
			}

			continue
		}

		key := period.KeyOf(date)
		lastKey = &key

		b := batchOf(key)
		b.Candidates = append(b.Candidates, importer.Candidate{
			Date:      date,
			Concept:   desc,
			Amount:    amount,
			Kind:      kind,
			Period:    key,
			SourceRef: ref,
		})

		if hasBalance {
			balances[key] = append(balances[key], balanceRow{date: date, order: i, balance: balance})
		}
	}

	if len(orphans) > 0 {
		if len(batches) == 0 {
			return nil, fmt.Errorf("%s: no valid rows found", orphans[0].Error())
		}

		first := earliest(batches)
		first.RowErrors = append(orphans, first.RowErrors...)
	}

	descending := isDescending(rows, dateIdx)

	out := make([]importer.Batch, 0, len(batches))
	for k, b := range batches {
		if rs := balances[k]; len(rs) > 0 {
			b.ExpectedClosing = importer.Expected(closingOf(rs, descending))
		}

		out = append(out, *b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })

	return out, nil
}

func earliest(batches map[period.Key]*importer.Batch) *importer.Batch {
	var first *importer.Batch

	for k, b := range batches {
		if first == nil || k.Before(first.Period) {
			first = b
		}
	}

	return first
}

// closingOf picks the running balance of the chronologically last row. Bank
// exports list the newest movement first, so among rows of the same date the
// last one in time is the first in the file.
func closingOf(rows []balanceRow, descending bool) decimal.Decimal {
	best := rows[0]

	for _, r := range rows[1:] {
		switch {
		case r.date.After(best.date):
			best = r
		case r.date.Equal(best.date):
			if descending == (r.order < best.order) {
				best = r
			}
		}
	}

	return best.balance
}

// isDescending reports whether the file lists the newest rows first.
func isDescending(rows [][]string, dateIdx int) bool {
	var first, last time.Time

	for _, row := range rows {
		d, err := parseDate(cellValue(row, dateIdx))
		if err != nil {
			continue
		}

		if first.IsZero() {
			first = d
		}

		last = d
	}

	return first.After(last)
}

// isNoise reports whether an undated row is a page marker or a totals line.
func isNoise(desc string) bool {
	d := strings.ToLower(strings.TrimSpace(desc))
	if d == "" {
		return true
	}

	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}

	return false
}

func isOpening(desc string) bool {
	d := strings.ToLower(desc)
	for _, prefix := range openingPrefixes {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}

	return false
}

// openingAmount resolves the amount of a balance brought forward: the
// balance column when present, the inflow otherwise.
func openingAmount(amount decimal.Decimal, kind movement.Kind, err error, balance decimal.Decimal, hasBalance bool) (decimal.Decimal, movement.Kind, error) {
	if hasBalance {
		amount, kind, err = balance, movement.KindIncome, nil
	}

	if err != nil {
		return amount, kind, err
	}

	if kind == movement.KindExpense || amount.IsNegative() {
		return decimal.Zero, "", errors.New("negative opening balances are not supported")
	}

	if amount.IsZero() {
		return decimal.Zero, "", errNoAmount
	}

	return amount, movement.KindOpeningBalance, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("is required")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%q is not a date", s)
}

var errNoAmount = errors.New("no amount")

// parseAmount extracts the amount and movement kind from a row based on the
// profile's amount mode. errNoAmount means the row carries no amount at all.
func parseAmount(p *Profile, cols colIndex, row []string) (decimal.Decimal, movement.Kind, error) {
	switch p.AmountMode {
	case amountSingle:
		return parseSingleAmount(cellValue(row, cols.get(p.AmountCol)))
	case amountSplit:
		return parseSplitAmount(cellValue(row, cols.get(p.DebitCol)), cellValue(row, cols.get(p.CreditCol)))
	}

	return decimal.Zero, "", errNoAmount
}

// parseSingleAmount handles a single signed amount column.
func parseSingleAmount(s string) (decimal.Decimal, movement.Kind, error) {
	if s == "" {
		return decimal.Zero, "", errNoAmount
	}

	d, err := parseEuropeanAmount(s)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%q is not an amount", s)
	}

	if d.IsZero() {
		return decimal.Zero, "", errNoAmount
	}

	if d.IsNegative() {
		return d.Neg(), movement.KindExpense, nil
	}

	return d, movement.KindIncome, nil
}

// parseSplitAmount handles separate debit/credit columns.
func parseSplitAmount(debit, credit string) (decimal.Decimal, movement.Kind, error) {
	var errs []error

	if debit != "" {
		d, err := parseEuropeanAmount(debit)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q is not an amount", debit))
		} else if !d.IsZero() {
			return d.Abs(), movement.KindExpense, nil
		}
	}

	if credit != "" {
		d, err := parseEuropeanAmount(credit)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q is not an amount", credit))
		} else if !d.IsZero() {
			return d.Abs(), movement.KindIncome, nil
		}
	}

	if len(errs) > 0 {
		return decimal.Zero, "", errors.Join(errs...)
	}

	return decimal.Zero, "", errNoAmount
}

func parseBalance(row []string, idx int) (decimal.Decimal, bool) {
	s := cellValue(row, idx)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := parseEuropeanAmount(s)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
