package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
	"github.com/MrJamesThe3rd/tesouraria/internal/validate"
)

//go:generate mockgen -source=committer.go -destination=committer_mock.go -package=importer
type Repository interface {
	// ExistingHashes reports which of the hashes belong to stored movements.
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	// BeginImport opens the transaction of one period's batch.
	BeginImport(ctx context.Context, key period.Key) (ImportTx, error)
}

// ImportTx is an in-progress transaction for the batch of one period.
type ImportTx interface {
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	// EnsureMutable checks the period of date under its lock, on the
	// transaction's own connection.
	EnsureMutable(ctx context.Context, date time.Time) error
	// Insert stores mv and reports false when its hash already exists.
	Insert(ctx context.Context, mv *movement.Movement) (bool, error)
	Commit() error
	Rollback() error
}

type Guard interface {
	EnsureMutable(ctx context.Context, date time.Time) error
}

type Aggregator interface {
	Aggregate(ctx context.Context, key period.Key) (period.Figures, error)
}

// Committer writes parsed batches into the ledger exactly once. Each period
// is committed in its own transaction; a failing period never affects the
// others.
type Committer struct {
	repo       Repository
	guard      Guard
	aggregator Aggregator
	validator  ledger.Validator
}

func NewCommitter(repo Repository, guard Guard, aggregator Aggregator, validator ledger.Validator) *Committer {
	return &Committer{
		repo:       repo,
		guard:      guard,
		aggregator: aggregator,
		validator:  validator,
	}
}

// Import commits the batches period by period, oldest first. A dry run only
// counts. Cancellation is checked between periods: the report of the
// periods already processed is returned together with the context error.
func (c *Committer) Import(ctx context.Context, batches []Batch, dryRun bool) (Report, error) {
	report := make(Report, len(batches))

	for _, b := range merge(batches) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		run := c.importPeriod(ctx, b, dryRun)
		report[b.Period] = run

		if run.Failed() {
			slog.Error("import rolled back", "period", b.Period.String(), "error", run.Err)
		}
	}

	return report, nil
}

func (c *Committer) importPeriod(ctx context.Context, b Batch, dryRun bool) *Run {
	run := &Run{
		Period:    b.Period,
		DryRun:    dryRun,
		Read:      len(b.Candidates) + len(b.RowErrors),
		RowErrors: append([]*RowError(nil), b.RowErrors...),
	}

	pending := c.prepare(b, run)

	existing, err := c.repo.ExistingHashes(ctx, hashesOf(pending))
	if err != nil {
		run.Err = &TransactionError{Period: b.Period, Err: fmt.Errorf("looking up existing movements: %w", err)}
		return run
	}

	fresh := pending[:0]

	for _, m := range pending {
		if existing[m.ContentHash] {
			run.Duplicate++
			continue
		}

		fresh = append(fresh, m)
	}

	run.New = len(fresh)

	if dryRun {
		c.preview(ctx, fresh, run)
		return run
	}

	if err := c.commit(ctx, b.Period, fresh, run); err != nil {
		run.Err = &TransactionError{Period: b.Period, Err: err}
		return run
	}

	c.check(ctx, b, run)

	return run
}

// prepare turns valid candidates into movements. Invalid candidates become row
// errors and repeats inside the batch count as duplicates.
func (c *Committer) prepare(b Batch, run *Run) []*movement.Movement {
	seen := make(map[string]bool, len(b.Candidates))
	out := make([]*movement.Movement, 0, len(b.Candidates))

	for i, cand := range b.Candidates {
		ref := cand.SourceRef
		if ref == "" {
			ref = fmt.Sprintf("%s#%d", b.Period, i+1)
		}

		if errs := validate.Struct(cand); len(errs) > 0 {
			for _, fe := range errs {
				run.RowErrors = append(run.RowErrors, &RowError{Ref: ref, Field: fe.Field, Reason: fe.Reason})
			}

			continue
		}

		if cand.Kind != movement.KindOpeningBalance && period.KeyOf(cand.Date) != b.Period {
			run.RowErrors = append(run.RowErrors, &RowError{
				Ref:    ref,
				Field:  "date",
				Reason: fmt.Sprintf("is outside period %s", b.Period),
			})

			continue
		}

		key := b.Period

		m, err := movement.New(movement.CreateParams{
			Kind:        cand.Kind,
			Amount:      cand.Amount,
			Date:        cand.Date,
			Description: cand.Concept,
			Category:    cand.Category,
			Period:      &key,
			Source:      movement.SourceImport,
			SourceRef:   ref,
		})
		if err != nil {
			run.RowErrors = append(run.RowErrors, &RowError{Ref: ref, Reason: err.Error()})
			continue
		}

		if seen[m.ContentHash] {
			run.Duplicate++
			continue
		}

		seen[m.ContentHash] = true
		out = append(out, m)
	}

	return out
}

func (c *Committer) commit(ctx context.Context, key period.Key, fresh []*movement.Movement, run *Run) error {
	if len(fresh) == 0 {
		return nil
	}

	itx, err := c.repo.BeginImport(ctx, key)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer itx.Rollback()

	// The ledger may have changed since the lookup outside the lock.
	existing, err := itx.ExistingHashes(ctx, hashesOf(fresh))
	if err != nil {
		return fmt.Errorf("looking up existing movements: %w", err)
	}

	var inserted, duplicate, rejected int

	for _, m := range fresh {
		if existing[m.ContentHash] {
			duplicate++
			continue
		}

		if err := ensureMutable(ctx, itx, m); err != nil {
			if errors.Is(err, period.ErrPeriodClosed) {
				rejected++
				continue
			}

			return err
		}

		ok, err := itx.Insert(ctx, m)
		if err != nil {
			return fmt.Errorf("%s: %w", m.SourceRef, err)
		}

		if !ok {
			duplicate++
			continue
		}

		inserted++
	}

	if err := itx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	run.Inserted = inserted
	run.RejectedClosed = rejected
	run.Duplicate += duplicate
	run.New -= duplicate

	return nil
}

// preview counts the new movements a commit would reject. It only reads.
func (c *Committer) preview(ctx context.Context, fresh []*movement.Movement, run *Run) {
	for _, m := range fresh {
		err := ensureMutable(ctx, c.guard, m)
		if err == nil {
			continue
		}

		if !errors.Is(err, period.ErrPeriodClosed) {
			run.CheckErr = err
			return
		}

		run.RejectedClosed++
	}
}

// check aggregates the committed period and compares it with the balance the
// source document states.
func (c *Committer) check(ctx context.Context, b Batch, run *Run) {
	figures, err := c.aggregator.Aggregate(ctx, b.Period)
	if err != nil {
		run.CheckErr = fmt.Errorf("aggregating period %s: %w", b.Period, err)
		return
	}

	run.Figures = &figures

	if b.ExpectedClosing == nil {
		return
	}

	if w := c.validator.Validate(figures.Closing, *b.ExpectedClosing); w != nil {
		run.Warning = w
		slog.Warn("balance discrepancy",
			"period", b.Period.String(),
			"computed", figures.Closing.StringFixed(2),
			"expected", b.ExpectedClosing.StringFixed(2),
			"delta", w.Delta.StringFixed(2),
		)
	}
}

// ensureMutable checks the period of the movement's date and, for an opening
// balance dated in another month, the period it belongs to.
func ensureMutable(ctx context.Context, g Guard, m *movement.Movement) error {
	if err := g.EnsureMutable(ctx, m.Date); err != nil {
		return err
	}

	if m.Period == period.KeyOf(m.Date) {
		return nil
	}

	return g.EnsureMutable(ctx, m.Period.Start())
}

func hashesOf(ms []*movement.Movement) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ContentHash
	}

	return out
}

// Expected is a helper for sources that state their closing balance.
func Expected(d decimal.Decimal) *decimal.Decimal {
	return &d
}
