package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken signals a malformed token or a bad signature.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired signals a well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenInfo is what a verified token tells about its holder.
type TokenInfo struct {
	UserID   string
	IssuedAt time.Time
}

type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (s *TokenService) Issue(userID string) (string, error) {
	issuedAt := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) Verify(tokenStr string) (TokenInfo, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuedAt())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenInfo{}, ErrTokenExpired
		}
		return TokenInfo{}, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" || claims.IssuedAt == nil {
		return TokenInfo{}, ErrInvalidToken
	}

	return TokenInfo{UserID: claims.UserID, IssuedAt: claims.IssuedAt.Time}, nil
}
