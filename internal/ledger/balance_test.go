package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
)

func TestValidator_Validate(t *testing.T) {
	type args struct {
		computed string
		expected string
	}

	type testCase struct {
		name      string
		args      args
		wantDelta string
	}

	tests := []testCase{
		{name: "Equal", args: args{"80.00", "80.00"}},
		{name: "WithinHalfCent", args: args{"80.004", "80.00"}},
		{name: "ExactlyHalfCent", args: args{"80.005", "80.00"}},
		{name: "BelowByHalfCent", args: args{"79.995", "80.00"}},
		{name: "OneCentOver", args: args{"80.01", "80.00"}, wantDelta: "0.01"},
		{name: "Short", args: args{"75.00", "80.00"}, wantDelta: "-5.00"},
	}

	v := ledger.DefaultValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := v.Validate(dec(tt.args.computed), dec(tt.args.expected))
			if tt.wantDelta == "" {
				assert.Nil(t, w)
				return
			}

			require.NotNil(t, w)
			assert.True(t, dec(tt.wantDelta).Equal(w.Delta), w.Delta.String())
			assert.Contains(t, w.Error(), "balance discrepancy")
		})
	}
}

func TestNewValidator(t *testing.T) {
	assert.True(t, dec("0.005").Equal(ledger.DefaultValidator().Epsilon()))
	assert.True(t, dec("0.02").Equal(ledger.NewValidator(2, 2).Epsilon()))
	assert.True(t, dec("1").Equal(ledger.NewValidator(1, 0).Epsilon()))
}
