package movement_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

func fingerprint() movement.Fingerprint {
	return movement.Fingerprint{
		Kind:        movement.KindIncome,
		Date:        time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("200.00"),
		Description: "Quotas setembro",
		Period:      period.Key{Year: 2025, Month: time.September},
	}
}

func TestFingerprint_Canonical(t *testing.T) {
	assert.Equal(t, "Income|2025-09-05|200.00|QUOTAS SETEMBRO|2025-09", fingerprint().Canonical())
}

func TestHash(t *testing.T) {
	base := movement.Hash(fingerprint())
	assert.Len(t, base, 64)

	type testCase struct {
		name   string
		mutate func(f *movement.Fingerprint)
		same   bool
	}

	tests := []testCase{
		{
			name:   "Identical",
			mutate: func(*movement.Fingerprint) {},
			same:   true,
		},
		{
			name:   "WhitespaceAndCase",
			mutate: func(f *movement.Fingerprint) { f.Description = "  quotas \t SETEMBRO " },
			same:   true,
		},
		{
			name:   "AmountScale",
			mutate: func(f *movement.Fingerprint) { f.Amount = decimal.RequireFromString("200") },
			same:   true,
		},
		{
			name:   "OneCentMore",
			mutate: func(f *movement.Fingerprint) { f.Amount = decimal.RequireFromString("200.01") },
		},
		{
			name:   "OtherDate",
			mutate: func(f *movement.Fingerprint) { f.Date = f.Date.AddDate(0, 0, 1) },
		},
		{
			name:   "OtherKind",
			mutate: func(f *movement.Fingerprint) { f.Kind = movement.KindExpense },
		},
		{
			name:   "OtherPeriod",
			mutate: func(f *movement.Fingerprint) { f.Period = period.Key{Year: 2025, Month: time.October} },
		},
		{
			name:   "OtherDescription",
			mutate: func(f *movement.Fingerprint) { f.Description = "Quotas outubro" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fingerprint()
			tt.mutate(&f)

			if tt.same {
				assert.Equal(t, base, movement.Hash(f))
			} else {
				assert.NotEqual(t, base, movement.Hash(f))
			}
		})
	}
}

func TestNormalizeDescription(t *testing.T) {
	assert.Equal(t, "CAFÉ CENTRAL", movement.NormalizeDescription(" café  central "))
	assert.Equal(t, "ESCRIT\u00d3RIO", movement.NormalizeDescription("Escrito\u0301rio"))
	assert.Equal(t, "", movement.NormalizeDescription(" \t\n"))
}
