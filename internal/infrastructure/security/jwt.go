// Package security provides JWT token utilities for operator authentication.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// OperatorClaims are the claims carried by an observer token.
type OperatorClaims struct {
	OperatorID string `json:"operatorId"`
	Username   string `json:"username"`
	Admin      bool   `json:"admin"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken creates a signed token for an observer login.
func GenerateOperatorToken(operatorID, username string, admin bool, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := OperatorClaims{
		OperatorID: operatorID,
		Username:   username,
		Admin:      admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateOperatorToken validates a token string and returns its claims.
func ValidateOperatorToken(tokenString, jwtSecret string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// HashCredential hashes an operator credential for storage.
func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCredential compares a stored hash against a presented credential.
func VerifyCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
