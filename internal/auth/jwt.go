package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errNoExpiry = errors.New("token has no exp claim")

// ExpiryFromJWT reads the exp claim of an access token without verifying its
// signature. It returns the expiry in unix milliseconds.
func ExpiryFromJWT(token string) (int64, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("parsing access token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return 0, fmt.Errorf("reading exp claim: %w", err)
	}
	if exp == nil {
		return 0, errNoExpiry
	}
	return exp.UnixMilli(), nil
}
