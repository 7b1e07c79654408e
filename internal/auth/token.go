package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	clock              clock.Clock
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, clk clock.Clock) *TokenManager {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TokenManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		clock:              clk,
	}
}

// GenerateAccessToken creates a short-lived access token with JTI
func (tm *TokenManager) GenerateAccessToken(userID, email string) (string, error) {
	return tm.sign(TokenTypeAccess, userID, email, tm.accessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token with JTI
func (tm *TokenManager) GenerateRefreshToken(userID, email string) (string, error) {
	return tm.sign(TokenTypeRefresh, userID, email, tm.refreshTokenExpiry)
}

func (tm *TokenManager) sign(tokenType, userID, email string, expiry time.Duration) (string, error) {
	now := tm.clock.Now()

	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type == "" {
		return nil, fmt.Errorf("invalid token: missing type")
	}

	return claims, nil
}
