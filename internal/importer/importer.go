package importer

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

// Format names a source file layout.
type Format string

const (
	// FormatTesouraria is the association's own treasury spreadsheet.
	FormatTesouraria Format = "tesouraria"
	// FormatCGD covers the CGD bank exports (conta, extrato, cartão).
	FormatCGD Format = "cgd"
	// FormatAuto tries every known layout.
	FormatAuto Format = "auto"
)

// Parser turns a source file into candidates grouped by period.
type Parser interface {
	Parse(r io.Reader) ([]Batch, error)
}

// Candidate is a parsed source row not yet in the ledger.
type Candidate struct {
	Date      time.Time       `validate:"required"`
	Concept   string          `validate:"required"`
	Category  string          `validate:"-"`
	Amount    decimal.Decimal `validate:"-"`
	Kind      movement.Kind   `validate:"required,oneof=income expense opening_balance"`
	Period    period.Key      `validate:"-"`
	SourceRef string          `validate:"-"`
}

// Batch holds every candidate of one period. ExpectedClosing is the balance
// the source document reports at the end of the period, when it has one.
type Batch struct {
	Period          period.Key
	Candidates      []Candidate
	ExpectedClosing *decimal.Decimal
	RowErrors       []*RowError
}

// RowError is a source row that could not become a movement.
type RowError struct {
	Ref    string
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Ref, e.Reason)
	}

	return fmt.Sprintf("%s: %s %s", e.Ref, e.Field, e.Reason)
}

// TransactionError reports a period whose batch was rolled back.
type TransactionError struct {
	Period period.Key
	Err    error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("import of %s rolled back: %v", e.Period, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Run is the outcome of importing one period.
type Run struct {
	Period         period.Key
	DryRun         bool
	Read           int
	New            int
	Duplicate      int
	Inserted       int
	RejectedClosed int
	RowErrors      []*RowError
	Figures        *period.Figures
	Warning        *ledger.DiscrepancyWarning
	// Err is set when the period's transaction was rolled back.
	Err error
	// CheckErr is set when the batch committed but the balance check could not run.
	CheckErr error
}

func (r *Run) Failed() bool {
	return r.Err != nil
}

// Report maps every imported period to its run.
type Report map[period.Key]*Run

// Keys returns the periods of the report in chronological order.
func (r Report) Keys() []period.Key {
	keys := make([]period.Key, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	return keys
}

// Failed returns the periods that were rolled back.
func (r Report) Failed() []period.Key {
	var out []period.Key

	for _, k := range r.Keys() {
		if r[k].Failed() {
			out = append(out, k)
		}
	}

	return out
}

// Totals sums the counters of every run.
func (r Report) Totals() Run {
	var t Run

	for _, run := range r {
		t.DryRun = t.DryRun || run.DryRun
		t.Read += run.Read
		t.New += run.New
		t.Duplicate += run.Duplicate
		t.Inserted += run.Inserted
		t.RejectedClosed += run.RejectedClosed
		t.RowErrors = append(t.RowErrors, run.RowErrors...)
	}

	return t
}

// merge combines batches of the same period and orders them chronologically.
func merge(batches []Batch) []Batch {
	byKey := make(map[period.Key]*Batch, len(batches))

	var keys []period.Key

	for _, b := range batches {
		m, ok := byKey[b.Period]
		if !ok {
			m = &Batch{Period: b.Period}
			byKey[b.Period] = m
			keys = append(keys, b.Period)
		}

		m.Candidates = append(m.Candidates, b.Candidates...)
		m.RowErrors = append(m.RowErrors, b.RowErrors...)

		if b.ExpectedClosing != nil {
			m.ExpectedClosing = b.ExpectedClosing
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make([]Batch, len(keys))
	for i, k := range keys {
		out[i] = *byKey[k]
	}

	return out
}
