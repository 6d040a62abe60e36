package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udem-taln/nerbridge/config"
)

func TestSignToken(t *testing.T) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			Secret: "test-secret",
		},
	}

	token, err := SignToken(cfg, "worker", time.Minute)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsedToken, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Auth.Secret), nil
	})
	if assert.NoError(t, err) {
		assert.True(t, parsedToken.Valid)
		assert.Equal(t, "worker", claims.Subject)
	}

	_, err = SignToken(&config.Config{}, "worker", time.Minute)
	assert.ErrorIs(t, err, ErrSecretNotSet)
}

func TestAuthorizeRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	require.NoError(t, AuthorizeRequest(&config.Config{}, req, "worker"))
	assert.Empty(t, req.Header.Get("Authorization"))

	cfg := &config.Config{Auth: config.AuthConfig{Secret: "test-secret"}}
	require.NoError(t, AuthorizeRequest(cfg, req, "worker"))
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer "))
}
