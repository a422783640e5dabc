package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/auth"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	token, err := auth.Issue(secret, "maria", "admin", time.Hour)
	require.NoError(t, err)

	user, err := auth.Parse(secret, token)
	require.NoError(t, err)
	assert.Equal(t, auth.User{Name: "maria", Role: "admin"}, user)

	_, err = auth.Parse([]byte("other"), token)
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	type testCase struct {
		name  string
		token func(t *testing.T) string
	}

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)

		return s
	}

	tests := []testCase{
		{
			name: "Expired",
			token: func(t *testing.T) string {
				s, err := auth.Issue(secret, "maria", "", -time.Minute)
				require.NoError(t, err)

				return s
			},
		},
		{
			name: "NoExpiry",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, auth.Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "maria"},
				})
			},
		},
		{
			name: "NoSubject",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, auth.Claims{
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
				})
			},
		},
		{
			name: "OtherAlgorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, secret, auth.Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   "maria",
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
				})
			},
		},
		{
			name:  "Garbage",
			token: func(*testing.T) string { return "not-a-token" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Parse(secret, tt.token(t))
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	admin, err := auth.Issue(secret, "maria", "admin", time.Hour)
	require.NoError(t, err)

	member, err := auth.Issue(secret, "joao", "member", time.Hour)
	require.NoError(t, err)

	type testCase struct {
		name       string
		secret     []byte
		header     string
		wantStatus int
		wantUser   string
	}

	tests := []testCase{
		{name: "Admin", secret: secret, header: "Bearer " + admin, wantStatus: http.StatusOK, wantUser: "maria"},
		{name: "NotAdmin", secret: secret, header: "Bearer " + member, wantStatus: http.StatusForbidden},
		{name: "MissingHeader", secret: secret, wantStatus: http.StatusUnauthorized},
		{name: "NotBearer", secret: secret, header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized},
		{name: "BadToken", secret: secret, header: "Bearer abc", wantStatus: http.StatusUnauthorized},
		{name: "NoSecret", header: "Bearer " + admin, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string

			final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = auth.Name(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			h := auth.Middleware(tt.secret)(auth.RequireRole("admin")(final))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
		})
	}
}

func TestLocalAdmin(t *testing.T) {
	var got auth.User

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.UserFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	auth.LocalAdmin("admin")(auth.RequireRole("admin")(final)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.User{Name: "local", Role: "admin"}, got)
}
