package ledger_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	handler "github.com/MrJamesThe3rd/tesouraria/internal/http/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var sep2025 = period.Key{Year: 2025, Month: time.September}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestHandler_Aggregate(t *testing.T) {
	type testCase struct {
		name       string
		path       string
		setupMock  func(m *ledger.MockSource)
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}

	explicit := func(m *ledger.MockSource) {
		m.EXPECT().OpeningBalance(gomock.Any(), sep2025).Return(dec("100"), true, nil)
		m.EXPECT().Totals(gomock.Any(), sep2025.Start(), sep2025.End()).Return(dec("50"), dec("30"), nil)
	}

	tests := []testCase{
		{
			name:       "Figures",
			path:       "/ledger/2025/9",
			setupMock:  explicit,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "2025-09", body["period"])

				figures, ok := body["figures"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "100.00", figures["opening_balance"])
				assert.Equal(t, "50.00", figures["total_income"])
				assert.Equal(t, "30.00", figures["total_expense"])
				assert.Equal(t, "120.00", figures["closing_balance"])
				assert.NotContains(t, body, "warning")
			},
		},
		{
			name:       "ExpectedWithinTolerance",
			path:       "/ledger/2025/9?expected=120.004",
			setupMock:  explicit,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body, "warning")
			},
		},
		{
			name:       "ExpectedMismatch",
			path:       "/ledger/2025/9?expected=125",
			setupMock:  explicit,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				warning, ok := body["warning"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "120.00", warning["computed"])
				assert.Equal(t, "125.00", warning["expected"])
				assert.Equal(t, "-5.00", warning["delta"])
			},
		},
		{
			name:       "BadExpected",
			path:       "/ledger/2025/9?expected=abc",
			setupMock:  func(*ledger.MockSource) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "BadMonth",
			path:       "/ledger/2025/13",
			setupMock:  func(*ledger.MockSource) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "SourceError",
			path: "/ledger/2025/9",
			setupMock: func(m *ledger.MockSource) {
				m.EXPECT().OpeningBalance(gomock.Any(), sep2025).Return(decimal.Zero, false, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "internal error", body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			src := ledger.NewMockSource(ctrl)
			tt.setupMock(src)

			r := chi.NewRouter()
			r.Route("/ledger", handler.NewHandler(ledger.NewAggregator(src), ledger.DefaultValidator()).Routes)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.check == nil {
				return
			}

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			tt.check(t, body)
		})
	}
}
