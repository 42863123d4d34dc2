package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RoundTrip(t *testing.T) {
	r := NewResolver("test-secret")

	token, err := r.Issue("u1", time.Minute)
	require.NoError(t, err)

	userID, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestResolver_WrongSecret(t *testing.T) {
	token, err := NewResolver("secret-1").Issue("u1", time.Minute)
	require.NoError(t, err)

	_, err = NewResolver("secret-2").Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolver_Expired(t *testing.T) {
	r := NewResolver("test-secret")
	token, err := r.Issue("u1", -time.Minute)
	require.NoError(t, err)

	_, err = r.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestResolver_RejectsEmptySubject(t *testing.T) {
	r := NewResolver("test-secret")
	token, err := r.Issue("  ", time.Minute)
	require.NoError(t, err)

	_, err = r.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolver_RejectsForeignIssuer(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = NewResolver(string(secret)).Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	r := NewResolver("test-secret")
	valid, err := r.Issue("u1", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"no header passes unauthenticated", "", http.StatusOK, ""},
		{"valid token", "Bearer " + valid, http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "u1"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				seen = UserID(req.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/workspace", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
