package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

// ErrInvalidToken is returned for malformed, unsigned, expired or
// wrong-purpose tokens.
var ErrInvalidToken = errors.New("invalid token")

const (
	// HeaderName is the request header carrying the session token.
	HeaderName = "token"
	// CookieName is the cookie set on login.
	CookieName = "token"

	audienceSession = "session"
	audienceVerify  = "verify-email"

	verificationTTL = 72 * time.Hour
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses HS256 tokens with a shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager issuing session tokens valid for ttl.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a new session token for a user and returns it with its expiry.
func (m *TokenManager) Issue(user models.User) (string, time.Time, error) {
	return m.sign(user, audienceSession, m.ttl)
}

// Parse validates a session token and returns its claims.
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, audienceSession)
}

// IssueVerification creates the token embedded in the e-mail verification link.
func (m *TokenManager) IssueVerification(user models.User) (string, error) {
	token, _, err := m.sign(user, audienceVerify, verificationTTL)
	return token, err
}

// ParseVerification validates an e-mail verification token.
func (m *TokenManager) ParseVerification(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, audienceVerify)
}

func (m *TokenManager) sign(user models.User, audience string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) parse(tokenStr, audience string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest extracts the session token from the `token` header, an
// `Authorization: Bearer` header or the `token` cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderName)); token != "" {
		return token
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
