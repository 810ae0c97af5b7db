package utils

import (
	"errors"

	"github.com/golang-jwt/jwt"
)

// Tokens are issued by the hosted auth platform; this service only verifies them.

var errEmptySecret = errors.New("jwt secret is not configured")

// ValidateToken parses and validates a token string signed with secret.
func ValidateToken(tokenString string, secret []byte) (*jwt.Token, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
}

// ExtractIDFromToken returns the subject (client identity) of a valid token.
func ExtractIDFromToken(tokenString string, secret []byte) (string, error) {
	token, err := ValidateToken(tokenString, secret)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token does not contain a valid 'sub' claim")
	}
	return sub, nil
}
