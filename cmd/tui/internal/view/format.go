package view

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/app"
)

const dbTimeout = 5 * time.Second

var currency = money.GetCurrency(money.EUR)

// SetCurrency selects the currency amounts are shown in.
func SetCurrency(c *money.Currency) {
	if c != nil {
		currency = c
	}
}

// FormatAmount formats a ledger amount in the selected currency.
func FormatAmount(d decimal.Decimal) string {
	return app.FormatMoney(d, currency)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
