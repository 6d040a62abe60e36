package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/udem-taln/nerbridge/config"
)

const JwtAlg = "HS256"

var ErrSecretNotSet = errors.New(
	"auth secret not set. Ensure NERBRIDGE_AUTH_SECRET is set in your environment",
)

// GenerateJWT generates a JWT token using the given config.
func GenerateJWT(cfg *config.Config) (string, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		return "", ErrSecretNotSet
	}

	tokenAuth := jwtauth.New(JwtAlg, secret, nil)
	_, tokenString, err := tokenAuth.Encode(nil)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// JWTVerifier returns a middleware that extracts and verifies the bearer token. Pair it
// with jwtauth.Authenticator to reject requests without a valid token.
func JWTVerifier(cfg *config.Config) func(http.Handler) http.Handler {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		// config.Validate rejects this combination; reaching it is a programming error
		panic(ErrSecretNotSet)
	}
	tokenAuth := jwtauth.New(JwtAlg, secret, nil)
	return jwtauth.Verifier(tokenAuth)
}
