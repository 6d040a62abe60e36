package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/udem-taln/nerbridge/config"
)

// SignToken returns a short-lived HS256 token identifying subject. Workers and gateways
// use it on outbound calls when auth is configured.
func SignToken(cfg *config.Config, subject string, ttl time.Duration) (string, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		return "", ErrSecretNotSet
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// AuthorizeRequest sets a bearer token on req when cfg has an auth secret. Without a
// secret the request is left untouched.
func AuthorizeRequest(cfg *config.Config, req *http.Request, subject string) error {
	if cfg == nil || cfg.Auth.Secret == "" {
		return nil
	}
	token, err := SignToken(cfg, subject, time.Minute)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
