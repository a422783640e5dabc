package period_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

func TestGuard_EnsureMutable(t *testing.T) {
	type args struct {
		date time.Time
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *period.MockLookup)
		wantErr   error
	}

	tests := []testCase{
		{
			name: "OpenPeriod",
			args: args{date: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
			setupMock: func(m *period.MockLookup) {
				m.EXPECT().IsClosed(gomock.Any(), period.Key{Year: 2025, Month: time.October}).Return(false, nil)
			},
		},
		{
			name: "FirstDayOfClosedPeriod",
			args: args{date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
			setupMock: func(m *period.MockLookup) {
				m.EXPECT().IsClosed(gomock.Any(), sep2025).Return(true, nil)
			},
			wantErr: period.ErrPeriodClosed,
		},
		{
			name: "LastInstantOfClosedPeriod",
			args: args{date: time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC)},
			setupMock: func(m *period.MockLookup) {
				m.EXPECT().IsClosed(gomock.Any(), sep2025).Return(true, nil)
			},
			wantErr: period.ErrPeriodClosed,
		},
		{
			name: "LookupError",
			args: args{date: time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)},
			setupMock: func(m *period.MockLookup) {
				m.EXPECT().IsClosed(gomock.Any(), sep2025).Return(false, errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			lookup := period.NewMockLookup(ctrl)
			tt.setupMock(lookup)

			err := period.NewGuard(lookup).EnsureMutable(context.Background(), tt.args.date)

			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, period.ErrPeriodClosed):
				var closedErr *period.ClosedError
				require.ErrorAs(t, err, &closedErr)
				assert.Equal(t, period.KeyOf(tt.args.date), closedErr.Key)
				assert.ErrorIs(t, err, period.ErrPeriodClosed)
			default:
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr.Error())
				assert.NotErrorIs(t, err, period.ErrPeriodClosed)
			}
		})
	}
}

func TestGuard_EveryDayOfClosedPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lookup := period.NewMockLookup(ctrl)
	lookup.EXPECT().IsClosed(gomock.Any(), sep2025).Return(true, nil).Times(30)

	guard := period.NewGuard(lookup)

	for d := sep2025.Start(); d.Before(sep2025.End()); d = d.AddDate(0, 0, 1) {
		assert.ErrorIs(t, guard.EnsureMutable(context.Background(), d), period.ErrPeriodClosed, d.Format(time.DateOnly))
	}
}
