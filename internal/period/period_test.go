package period_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

func TestKey(t *testing.T) {
	dec2025 := period.Key{Year: 2025, Month: time.December}

	assert.Equal(t, "2025-12", dec2025.String())
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), dec2025.Start())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), dec2025.End())
	assert.True(t, dec2025.Contains(time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)))
	assert.False(t, dec2025.Contains(dec2025.End()))

	assert.True(t, sep2025.Before(dec2025))
	assert.False(t, dec2025.Before(sep2025))
	assert.True(t, dec2025.Before(period.Key{Year: 2026, Month: time.January}))

	assert.NotEqual(t, sep2025.LockID(), dec2025.LockID())
	assert.Equal(t, sep2025.LockID(), period.KeyOf(time.Date(2025, 9, 9, 0, 0, 0, 0, time.UTC)).LockID())
}

func TestNewKey(t *testing.T) {
	type args struct {
		year, month int
	}

	type testCase struct {
		name    string
		args    args
		want    period.Key
		wantErr bool
	}

	tests := []testCase{
		{name: "Valid", args: args{2025, 9}, want: sep2025},
		{name: "MonthZero", args: args{2025, 0}, wantErr: true},
		{name: "MonthThirteen", args: args{2025, 13}, wantErr: true},
		{name: "YearOutOfRange", args: args{25, 9}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := period.NewKey(tt.args.year, tt.args.month)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKey(t *testing.T) {
	got, err := period.ParseKey("2025-09")
	require.NoError(t, err)
	assert.Equal(t, sep2025, got)

	_, err = period.ParseKey("09/2025")
	assert.Error(t, err)
}

func TestNewFigures(t *testing.T) {
	f := period.NewFigures(dec("100.00"), dec("50.00"), dec("30.00"))
	assert.Equal(t, "120.00", f.Closing.StringFixed(2))
	assert.True(t, dec("120").Equal(f.Closing))

	// Binary floating point would drift here.
	f = period.NewFigures(dec("0.10"), dec("0.20"), dec("0.30"))
	assert.True(t, f.Closing.IsZero())
}
