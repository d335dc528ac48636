// Package auth signs and parses the session access tokens handed out after
// a successful login.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the account, the backing session row and the account's
// roles at the time of issue.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64    `json:"aid"`
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles,omitempty"`
}

func GenerateToken(accountID int64, sessionID string, roles []string, secretKey []byte, issuedAt time.Time, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validityDuration)),
		},
		AccountID: accountID,
		SessionID: sessionID,
		Roles:     roles,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry against now. Expired tokens
// yield common.ErrTokenExpired, anything else unusable common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.AccountID == 0 || claims.SessionID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
