package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/apperror"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	return ts
}

func TestNewTokenServiceShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	assert.Error(t, err)
}

func TestValidateRoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)
}

func TestValidateRejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("another-secret-of-enough-length")
	require.NoError(t, err)

	expired, err := ts.GenerateWithDuration("u1", -time.Second)
	require.NoError(t, err)
	good, err := ts.Generate("u1")
	require.NoError(t, err)
	foreign, err := other.Generate("u1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"tampered", good[:len(good)-3] + "xxx"},
		{"wrong secret", foreign},
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAdminKeyCheck(t *testing.T) {
	key := NewAdminKey("s3cret")

	assert.NoError(t, key.Check("s3cret"))

	err := key.Check("wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Equal(t, "denied", err.Error())

	assert.Error(t, NewAdminKey("").Check(""))
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("ann@example.com")
	require.NoError(t, err)

	var gotID string
	var gotOK bool
	h := OptionalAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, gotOK)
	assert.Equal(t, "ann@example.com", gotID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, gotOK)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	OptionalAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = UserIDFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, gotOK)
}
