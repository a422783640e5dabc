// Package app wires the stores and services shared by every binary.
package app

import (
	"database/sql"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
	auditStore "github.com/MrJamesThe3rd/tesouraria/internal/audit/store"
	"github.com/MrJamesThe3rd/tesouraria/internal/config"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/importer/sheet"
	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/tesouraria/internal/matching/store"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	movementStore "github.com/MrJamesThe3rd/tesouraria/internal/movement/store"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
	periodStore "github.com/MrJamesThe3rd/tesouraria/internal/period/store"
)

type App struct {
	Currency   *money.Currency
	Validator  ledger.Validator
	Aggregator *ledger.Aggregator
	Guard      *period.Guard
	Audit      *audit.Service
	Periods    *period.Service
	Movements  *movement.Service
	Matching   *matching.Service
	Import     *importer.Service
}

func New(db *sql.DB, cfg *config.Config) (*App, error) {
	currency := money.GetCurrency(cfg.Ledger.Currency)
	if currency == nil {
		return nil, fmt.Errorf("unknown currency %q", cfg.Ledger.Currency)
	}

	var (
		periods   = periodStore.New(db)
		movements = movementStore.New(db)
	)

	var (
		validator  = ledger.NewValidator(cfg.Ledger.ToleranceMinorUnits, int32(currency.Fraction))
		aggregator = ledger.NewAggregator(movements)
		guard      = period.NewGuard(periods)
		auditSvc   = audit.NewService(auditStore.New(db), cfg.Ledger.AuditTimeout)
		matchSvc   = matching.NewService(matchingStore.New(db))
	)

	parsers := map[importer.Format]importer.Parser{
		importer.FormatTesouraria: sheet.New(sheet.Tesouraria),
		importer.FormatCGD:        sheet.New(sheet.CGD...),
		importer.FormatAuto:       sheet.New(),
	}

	return &App{
		Currency:   currency,
		Validator:  validator,
		Aggregator: aggregator,
		Guard:      guard,
		Audit:      auditSvc,
		Periods:    period.NewService(periods, aggregator, auditSvc),
		Movements:  movement.NewService(movements, guard),
		Matching:   matchSvc,
		Import: importer.NewService(
			parsers,
			matchSvc,
			importer.NewCommitter(movements, guard, aggregator, validator),
		),
	}, nil
}

// Format renders a ledger amount in the configured currency, e.g. "€1,080.00".
func (a *App) Format(amount decimal.Decimal) string {
	return FormatMoney(amount, a.Currency)
}

// FormatMoney rounds amount to the currency's minor unit and renders it.
func FormatMoney(amount decimal.Decimal, cur *money.Currency) string {
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
