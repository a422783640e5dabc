package app_test

import (
	"testing"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/tesouraria/internal/app"
)

func TestApp_Format(t *testing.T) {
	a := &app.App{Currency: money.GetCurrency(money.EUR)}

	type testCase struct {
		name   string
		amount string
		want   string
	}

	tests := []testCase{
		{name: "Whole", amount: "1080", want: money.New(108000, money.EUR).Display()},
		{name: "Cents", amount: "12.5", want: money.New(1250, money.EUR).Display()},
		{name: "Negative", amount: "-3.01", want: money.New(-301, money.EUR).Display()},
		{name: "RoundsSubCent", amount: "0.005", want: money.New(1, money.EUR).Display()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Format(decimal.RequireFromString(tt.amount)))
		})
	}
}
