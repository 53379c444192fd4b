package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

var testUser = models.User{ID: "user-1", Email: "a@x.com"}

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, expiresAt, err := m.Issue(testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestIssue_TokensAreUnique(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	t1, _, err := m.Issue(testUser)
	require.NoError(t, err)
	t2, _, err := m.Issue(testUser)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}

func TestParse_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	valid, _, err := m.Issue(testUser)
	require.NoError(t, err)

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expiredToken, _, err := expired.Issue(testUser)
	require.NoError(t, err)

	otherSecret, _, err := NewTokenManager("other", time.Hour).Issue(testUser)
	require.NoError(t, err)

	verification, err := m.IssueVerification(testUser)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceSession},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered", valid + "x"},
		{"expired", expiredToken},
		{"wrong secret", otherSecret},
		{"verification token", verification},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerificationToken(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.IssueVerification(testUser)
	require.NoError(t, err)

	claims, err := m.ParseVerification(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	session, _, err := m.Issue(testUser)
	require.NoError(t, err)
	_, err = m.ParseVerification(session)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("token header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("token", "abc")
		r.Header.Set("Authorization", "Bearer def")
		assert.Equal(t, "abc", TokenFromRequest(r))
	})

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer def")
		assert.Equal(t, "def", TokenFromRequest(r))
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "ghi"})
		assert.Equal(t, "ghi", TokenFromRequest(r))
	})

	t.Run("none", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic xyz")
		assert.Empty(t, TokenFromRequest(r))
	})
}
