package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateJWT(42, "admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	InitJWT("secret-one")
	token, err := GenerateJWT(1, "a@example.com")
	require.NoError(t, err)

	InitJWT("secret-two")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWT_Garbage(t *testing.T) {
	InitJWT("test-secret")
	_, err := ValidateJWT("not-a-token")
	assert.Error(t, err)
}
