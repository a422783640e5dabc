package period_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/auth"
	handler "github.com/MrJamesThe3rd/tesouraria/internal/http/period"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var sep2025 = period.Key{Year: 2025, Month: time.September}

type mocks struct {
	repo  *period.MockRepository
	tx    *period.MockTransitionTx
	agg   *period.MockAggregator
	audit *period.MockAuditLogger
}

func newServer(t *testing.T, user auth.User, setup func(m mocks)) http.Handler {
	t.Helper()

	ctrl := gomock.NewController(t)

	m := mocks{
		repo:  period.NewMockRepository(ctrl),
		tx:    period.NewMockTransitionTx(ctrl),
		agg:   period.NewMockAggregator(ctrl),
		audit: period.NewMockAuditLogger(ctrl),
	}
	m.tx.EXPECT().Rollback().Return(nil).AnyTimes()
	m.tx.EXPECT().Aggregator().Return(m.agg).AnyTimes()
	setup(m)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), user)))
		})
	})
	r.Route("/periods", handler.NewHandler(period.NewService(m.repo, m.agg, m.audit), "admin").Routes)

	return r
}

func figures() period.Figures {
	return period.NewFigures(decimal.RequireFromString("100"), decimal.RequireFromString("200"), decimal.RequireFromString("120"))
}

func TestHandler_Close(t *testing.T) {
	type testCase struct {
		name       string
		path       string
		setup      func(m mocks)
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}

	treasurer := auth.User{Name: "treasurer", Role: "member"}

	tests := []testCase{
		{
			name: "Success",
			path: "/periods/2025/9/close",
			setup: func(m mocks) {
				m.repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(m.tx, nil)
				m.tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
				m.agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(figures(), nil)
				m.tx.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				m.tx.EXPECT().Commit().Return(nil)
				m.audit.EXPECT().LogAsync(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Entry) {
					assert.Equal(t, "treasurer", e.User)
					assert.Equal(t, "close", e.Action)
				})
			},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "2025-09", body["period"])
				assert.Equal(t, true, body["closed"])
				assert.Equal(t, "treasurer", body["closed_by"])

				snapshot, ok := body["snapshot"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "180.00", snapshot["closing_balance"])
			},
		},
		{
			name: "AlreadyClosed",
			path: "/periods/2025/9/close",
			setup: func(m mocks) {
				m.repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(m.tx, nil)
				m.tx.EXPECT().Get(gomock.Any()).Return(&period.Period{Key: sep2025, Closed: true}, nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "InvalidMonth",
			path:       "/periods/2025/13/close",
			setup:      func(mocks) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, treasurer, tt.setup)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"notes":"september"}`)))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.check != nil {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				tt.check(t, body)
			}
		})
	}
}

func TestHandler_Reopen(t *testing.T) {
	type testCase struct {
		name       string
		user       auth.User
		body       string
		setup      func(m mocks)
		wantStatus int
	}

	admin := auth.User{Name: "president", Role: "admin"}
	closedAt := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)

	tests := []testCase{
		{
			name: "Success",
			user: admin,
			body: `{"reason":"missing receipt"}`,
			setup: func(m mocks) {
				f := figures()
				m.repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(m.tx, nil)
				m.tx.EXPECT().Get(gomock.Any()).Return(&period.Period{Key: sep2025, Closed: true, ClosedAt: &closedAt, Figures: &f}, nil)
				m.tx.EXPECT().Delete(gomock.Any()).Return(nil)
				m.tx.EXPECT().Commit().Return(nil)
				m.audit.EXPECT().LogAsync(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Entry) {
					assert.Equal(t, "president", e.User)
					assert.Equal(t, "missing receipt", e.Note)
				})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "NotAdmin",
			user:       auth.User{Name: "treasurer", Role: "member"},
			body:       `{"reason":"missing receipt"}`,
			setup:      func(mocks) {},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "MissingReason",
			user:       admin,
			body:       `{}`,
			setup:      func(mocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "NotClosed",
			user: admin,
			body: `{"reason":"typo"}`,
			setup: func(m mocks) {
				m.repo.EXPECT().BeginTransition(gomock.Any(), sep2025).Return(m.tx, nil)
				m.tx.EXPECT().Get(gomock.Any()).Return(nil, period.ErrNotClosed)
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.user, tt.setup)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/periods/2025/9/reopen", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_GetOpenPeriod(t *testing.T) {
	srv := newServer(t, auth.User{Name: "treasurer"}, func(m mocks) {
		m.repo.EXPECT().Get(gomock.Any(), sep2025).Return(nil, period.ErrNotClosed)
		m.agg.EXPECT().Aggregate(gomock.Any(), sep2025).Return(figures(), nil)
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/periods/2025/09", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["closed"])
	assert.Nil(t, body["snapshot"])

	live, ok := body["live"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "100.00", live["opening_balance"])
}

func TestHandler_List(t *testing.T) {
	srv := newServer(t, auth.User{Name: "treasurer"}, func(m mocks) {
		f := figures()
		m.repo.EXPECT().List(gomock.Any(), 2025).Return([]*period.Period{{Key: sep2025, Closed: true, Figures: &f}}, nil)
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/periods?year=2025", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "2025-09", body[0]["period"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/periods?year=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
