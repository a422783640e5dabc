package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

// Source reads sums from the movement table. Only active movements (not
// annulled, not deleted) are counted.
//
//go:generate mockgen -source=aggregator.go -destination=aggregator_mock.go -package=ledger
type Source interface {
	// OpeningBalance returns the amount of the opening-balance movement tagged
	// for the period, and false when there is none.
	OpeningBalance(ctx context.Context, key period.Key) (decimal.Decimal, bool, error)
	// NetBefore returns income minus expense of every non-opening movement dated before t.
	NetBefore(ctx context.Context, t time.Time) (decimal.Decimal, error)
	// Totals returns income and expense of non-opening movements dated in [from, to).
	Totals(ctx context.Context, from, to time.Time) (income, expense decimal.Decimal, err error)
}

// Aggregator computes the figures of a period from the ledger. It never writes.
type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

func (a *Aggregator) Aggregate(ctx context.Context, key period.Key) (period.Figures, error) {
	opening, err := a.opening(ctx, key)
	if err != nil {
		return period.Figures{}, err
	}

	income, expense, err := a.src.Totals(ctx, key.Start(), key.End())
	if err != nil {
		return period.Figures{}, fmt.Errorf("summing movements of %s: %w", key, err)
	}

	return period.NewFigures(opening, income, expense), nil
}

func (a *Aggregator) opening(ctx context.Context, key period.Key) (decimal.Decimal, error) {
	explicit, found, err := a.src.OpeningBalance(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading opening balance of %s: %w", key, err)
	}

	if found {
		return explicit, nil
	}

	net, err := a.src.NetBefore(ctx, key.Start())
	if err != nil {
		return decimal.Zero, fmt.Errorf("computing balance before %s: %w", key, err)
	}

	return net, nil
}
