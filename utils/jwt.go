package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ttt-platform/trash2treasure/config"
)

// Token kinds carried in the "typ" claim.
const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

// Claims defines JWT claims used in the application.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// GenerateToken issues a JWT of the given kind for the specified user identity.
func GenerateToken(userID uint, username, role, tokenType string, duration time.Duration) (string, error) {
	cfg := config.Get()
	now := time.Now()

	claims := Claims{
		UserID:    userID,
		Username:  username,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// GenerateTokenPair issues an access and a refresh token using the configured lifetimes.
func GenerateTokenPair(userID uint, username, role string) (TokenPair, error) {
	cfg := config.Get()
	accessTTL := time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
	refreshTTL := time.Duration(cfg.RefreshTokenTTLHours) * time.Hour

	access, err := GenerateToken(userID, username, role, AccessToken, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateToken(userID, username, role, RefreshToken, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	now := time.Now()
	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  now.Add(accessTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
	}, nil
}

// ParseToken validates a JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ParseTokenOfType validates a JWT and checks its kind.
func ParseTokenOfType(tokenStr, tokenType string) (*Claims, error) {
	claims, err := ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, errors.New("wrong token type")
	}
	return claims, nil
}

// TokenExpiry returns the expiry of claims, or fallback from now when missing.
func TokenExpiry(claims *Claims, fallback time.Duration) time.Time {
	if claims != nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(fallback)
}
