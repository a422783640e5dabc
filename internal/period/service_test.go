package period_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var sep2025 = period.Key{Year: 2025, Month: time.September}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memoryRepo is a period.Repository keeping snapshots in a map. Its
// transitions aggregate with agg.
type memoryRepo struct {
	mu        sync.Mutex
	snapshots map[period.Key]period.Period
	agg       period.Aggregator
}

func newMemoryRepo(agg period.Aggregator) *memoryRepo {
	return &memoryRepo{snapshots: make(map[period.Key]period.Period), agg: agg}
}

func (r *memoryRepo) IsClosed(_ context.Context, key period.Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.snapshots[key]

	return ok, nil
}

func (r *memoryRepo) Get(_ context.Context, key period.Key) (*period.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.snapshots[key]
	if !ok {
		return nil, period.ErrNotClosed
	}

	return &p, nil
}

func (r *memoryRepo) List(_ context.Context, year int) ([]*period.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*period.Period

	for k, p := range r.snapshots {
		if k.Year == year {
			p := p
			out = append(out, &p)
		}
	}

	return out, nil
}

func (r *memoryRepo) BeginTransition(_ context.Context, key period.Key) (period.TransitionTx, error) {
	return &memoryTx{repo: r, key: key}, nil
}

type memoryTx struct {
	repo    *memoryRepo
	key     period.Key
	create  *period.Period
	deleted bool
}

func (tx *memoryTx) Get(ctx context.Context) (*period.Period, error) {
	return tx.repo.Get(ctx, tx.key)
}

func (tx *memoryTx) Create(_ context.Context, p *period.Period) error {
	if closed, _ := tx.repo.IsClosed(context.Background(), tx.key); closed {
		return period.ErrAlreadyClosed
	}

	tx.create = p

	return nil
}

func (tx *memoryTx) Delete(context.Context) error {
	tx.deleted = true
	return nil
}

func (tx *memoryTx) Commit() error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()

	if tx.create != nil {
		tx.repo.snapshots[tx.key] = *tx.create
	}

	if tx.deleted {
		delete(tx.repo.snapshots, tx.key)
	}

	return nil
}

func (tx *memoryTx) Rollback() error { return nil }

func (tx *memoryTx) Aggregator() period.Aggregator { return tx.repo.agg }

func TestService_CloseGuardReopenScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	agg := period.NewMockAggregator(ctrl)
	repo := newMemoryRepo(agg)
	auditLog := period.NewMockAuditLogger(ctrl)

	svc := period.NewService(repo, agg, auditLog)
	guard := period.NewGuard(repo)
	ctx := context.Background()
	day := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

	agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(period.NewFigures(dec("0"), dec("200"), dec("120")), nil)

	var entries []audit.Entry

	auditLog.EXPECT().LogAsync(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Entry) {
		entries = append(entries, e)
	}).Times(2)

	closed, err := svc.Close(ctx, sep2025, "treasurer", "september books")
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	require.NotNil(t, closed.Figures)
	assert.True(t, dec("80").Equal(closed.Figures.Closing))
	assert.Equal(t, "treasurer", closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	err = guard.EnsureMutable(ctx, day)
	require.ErrorIs(t, err, period.ErrPeriodClosed)

	var closedErr *period.ClosedError
	require.ErrorAs(t, err, &closedErr)
	assert.Equal(t, sep2025, closedErr.Key)

	reopened, err := svc.Reopen(ctx, sep2025, "correction needed", "admin")
	require.NoError(t, err)
	assert.False(t, reopened.Closed)

	_, err = repo.Get(ctx, sep2025)
	require.ErrorIs(t, err, period.ErrNotClosed)

	require.NoError(t, guard.EnsureMutable(ctx, day))

	require.Len(t, entries, 2)

	assert.Equal(t, "close", entries[0].Action)
	assert.Equal(t, "2025-09", entries[0].EntityID)
	assert.Equal(t, "80.00", entries[0].NewValues.(map[string]any)["closing_balance"])

	reopen := entries[1]
	assert.Equal(t, "reopen", reopen.Action)
	assert.Equal(t, "admin", reopen.User)
	assert.Equal(t, "correction needed", reopen.Note)

	old := reopen.OldValues.(map[string]any)
	assert.Equal(t, "80.00", old["closing_balance"])
	assert.Equal(t, "200.00", old["total_income"])
	assert.Equal(t, "120.00", old["total_expense"])
	assert.Equal(t, true, old["closed"])
	assert.Equal(t, "correction needed", reopen.NewValues.(map[string]any)["reopen_reason"])
}

func TestService_RecloseRecomputes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	agg := period.NewMockAggregator(ctrl)
	repo := newMemoryRepo(agg)
	auditLog := period.NewMockAuditLogger(ctrl)
	auditLog.EXPECT().LogAsync(gomock.Any(), gomock.Any()).AnyTimes()

	gomock.InOrder(
		agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(period.NewFigures(dec("0"), dec("200"), dec("120")), nil),
		agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(period.NewFigures(dec("0"), dec("200"), dec("150")), nil),
	)

	svc := period.NewService(repo, agg, auditLog)
	ctx := context.Background()

	_, err := svc.Close(ctx, sep2025, "treasurer", "")
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, sep2025, "missing invoice", "admin")
	require.NoError(t, err)

	again, err := svc.Close(ctx, sep2025, "treasurer", "")
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(again.Figures.Closing))
}

func TestService_Close(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(repo *period.MockRepository, tx *period.MockTransitionTx, agg *period.MockAggregator, log *period.MockAuditLogger)
		wantErr   error
	}

	figures := period.NewFigures(dec("100.00"), dec("50.00"), dec("30.00"))

	tests := []testCase{
		{
			name: "Success",
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx, agg *period.MockAggregator, log *period.MockAuditLogger) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
				agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(figures, nil)
				tx.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *period.Period) error {
					assert.True(t, dec("120.00").Equal(p.Figures.Closing))
					return nil
				})
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
				log.EXPECT().LogAsync(gomock.Any(), gomock.Any())
			},
		},
		{
			name: "AlreadyClosed",
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx, _ *period.MockAggregator, _ *period.MockAuditLogger) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(&period.Period{Key: sep2025, Closed: true}, nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: period.ErrAlreadyClosed,
		},
		{
			name: "ConcurrentCloseWins",
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx, agg *period.MockAggregator, _ *period.MockAuditLogger) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
				agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(figures, nil)
				tx.EXPECT().Create(gomock.Any(), gomock.Any()).Return(period.ErrAlreadyClosed)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: period.ErrAlreadyClosed,
		},
		{
			name: "AggregateError",
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx, agg *period.MockAggregator, _ *period.MockAuditLogger) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
				agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(period.Figures{}, errors.New("db down"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: errors.New("db down"),
		},
		{
			name: "BeginError",
			setupMock: func(repo *period.MockRepository, _ *period.MockTransitionTx, _ *period.MockAggregator, _ *period.MockAuditLogger) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(nil, errors.New("lock timeout"))
			},
			wantErr: errors.New("lock timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := period.NewMockRepository(ctrl)
			tx := period.NewMockTransitionTx(ctrl)
			agg := period.NewMockAggregator(ctrl)
			log := period.NewMockAuditLogger(ctrl)
			tx.EXPECT().Aggregator().Return(agg).AnyTimes()
			tt.setupMock(repo, tx, agg, log)

			// Close must aggregate through the transition, never the pool.
			svc := period.NewService(repo, period.NewMockAggregator(ctrl), log)
			got, err := svc.Close(context.Background(), sep2025, "treasurer", "notes")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, got)

				if errors.Is(tt.wantErr, period.ErrAlreadyClosed) {
					assert.ErrorIs(t, err, period.ErrAlreadyClosed)
				} else {
					assert.ErrorContains(t, err, tt.wantErr.Error())
				}

				return
			}

			require.NoError(t, err)
			assert.True(t, got.Closed)
			assert.Equal(t, "notes", got.Notes)
		})
	}
}

func TestService_Reopen(t *testing.T) {
	type args struct {
		reason string
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(repo *period.MockRepository, tx *period.MockTransitionTx)
		wantErr   error
	}

	snapshot := &period.Period{
		Key:     sep2025,
		Closed:  true,
		Figures: &period.Figures{Closing: dec("80")},
	}

	tests := []testCase{
		{
			name: "EmptyReason",
			args: args{reason: ""},
			// No repository call is expected: nothing may change.
			setupMock: func(*period.MockRepository, *period.MockTransitionTx) {},
			wantErr:   period.ErrInvalidReason,
		},
		{
			name:      "BlankReason",
			args:      args{reason: "   \t"},
			setupMock: func(*period.MockRepository, *period.MockTransitionTx) {},
			wantErr:   period.ErrInvalidReason,
		},
		{
			name: "NotClosed",
			args: args{reason: "fix"},
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: period.ErrNotClosed,
		},
		{
			name: "DeleteError",
			args: args{reason: "fix"},
			setupMock: func(repo *period.MockRepository, tx *period.MockTransitionTx) {
				repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(tx, nil)
				tx.EXPECT().Get(gomock.Any()).Return(snapshot, nil)
				tx.EXPECT().Delete(gomock.Any()).Return(errors.New("db down"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := period.NewMockRepository(ctrl)
			tx := period.NewMockTransitionTx(ctrl)
			agg := period.NewMockAggregator(ctrl)
			log := period.NewMockAuditLogger(ctrl)
			tt.setupMock(repo, tx)

			svc := period.NewService(repo, agg, log)
			got, err := svc.Reopen(context.Background(), sep2025, tt.args.reason, "admin")

			require.Error(t, err)
			assert.Nil(t, got)

			switch {
			case errors.Is(tt.wantErr, period.ErrInvalidReason), errors.Is(tt.wantErr, period.ErrNotClosed):
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			}
		})
	}
}

func TestService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := period.NewMockRepository(ctrl)
	repo.EXPECT().Get(gomock.Any(), sep2025).Return(nil, period.ErrNotClosed)

	svc := period.NewService(repo, period.NewMockAggregator(ctrl), period.NewMockAuditLogger(ctrl))

	got, err := svc.Get(context.Background(), sep2025)
	require.NoError(t, err)
	assert.False(t, got.Closed)
	assert.Nil(t, got.Figures)
	assert.Equal(t, sep2025, got.Key)
}

func TestService_Status(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := period.NewMockRepository(ctrl)
	agg := period.NewMockAggregator(ctrl)

	frozen := period.NewFigures(dec("0"), dec("200"), dec("120"))
	live := period.NewFigures(dec("0"), dec("200"), dec("125"))

	repo.EXPECT().Get(gomock.Any(), sep2025).Return(&period.Period{Key: sep2025, Closed: true, Figures: &frozen}, nil)
	agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(live, nil)

	svc := period.NewService(repo, agg, period.NewMockAuditLogger(ctrl))

	got, err := svc.Status(context.Background(), sep2025)
	require.NoError(t, err)
	assert.True(t, got.Period.Closed)
	assert.True(t, dec("80").Equal(got.Period.Figures.Closing))
	assert.True(t, dec("75").Equal(got.Live.Closing))
}
