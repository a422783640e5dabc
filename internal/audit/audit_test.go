package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
)

func TestService_LogAsync(t *testing.T) {
	type testCase struct {
		name      string
		entry     audit.Entry
		insertErr error
		check     func(t *testing.T, rec audit.Record)
	}

	tests := []testCase{
		{
			name: "EncodesValues",
			entry: audit.Entry{
				EntityType: "period",
				EntityID:   "2025-09",
				Action:     "reopen",
				User:       "treasurer",
				OldValues:  map[string]string{"closing": "80.00"},
				Note:       "missing receipt",
			},
			check: func(t *testing.T, rec audit.Record) {
				assert.JSONEq(t, `{"closing":"80.00"}`, string(rec.OldValues))
				assert.Nil(t, rec.NewValues)
				assert.Equal(t, "reopen", rec.Action)
				assert.NotZero(t, rec.ID)
				assert.False(t, rec.CreatedAt.IsZero())
			},
		},
		{
			name:      "RepositoryErrorIsSwallowed",
			entry:     audit.Entry{EntityType: "movement", EntityID: "x", Action: "delete"},
			insertErr: errors.New("db down"),
			check: func(t *testing.T, rec audit.Record) {
				assert.Nil(t, rec.OldValues)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := audit.NewMockRepository(ctrl)

			var got audit.Record

			repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec audit.Record) error {
				got = rec
				return tt.insertErr
			})

			svc := audit.NewService(repo, time.Second)
			svc.LogAsync(context.Background(), tt.entry)
			svc.Wait()

			tt.check(t, got)
		})
	}
}

func TestService_LogAsyncOutlivesCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := audit.NewMockRepository(ctrl)
	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ audit.Record) error {
		assert.NoError(t, ctx.Err())
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := audit.NewService(repo, time.Second)
	svc.LogAsync(ctx, audit.Entry{EntityType: "period", EntityID: "2025-09", Action: "close"})
	svc.Wait()
}

func TestService_LogAsyncUnencodable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := audit.NewService(audit.NewMockRepository(ctrl), 0)
	svc.LogAsync(context.Background(), audit.Entry{NewValues: make(chan int)})
	svc.Wait()
}
