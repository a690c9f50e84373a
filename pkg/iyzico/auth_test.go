package iyzico

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSignatureDeterministic(t *testing.T) {
	body := []byte(`{"locale":"tr","conversationId":"abc","price":"100.00"}`)

	first := GenerateSignature("secret-key", "1700000000000123456789", "/payment/3dsecure/initialize", body)
	second := GenerateSignature("secret-key", "1700000000000123456789", "/payment/3dsecure/initialize", body)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA256
}

func TestGenerateSignatureBodySensitivity(t *testing.T) {
	body := []byte(`{"price":"100.00"}`)
	mutated := []byte(`{"price":"100.01"}`)

	base := GenerateSignature("secret-key", "rnd", "/payment/detail", body)

	assert.NotEqual(t, base, GenerateSignature("secret-key", "rnd", "/payment/detail", mutated))
	assert.NotEqual(t, base, GenerateSignature("secret-key", "rnd2", "/payment/detail", body))
	assert.NotEqual(t, base, GenerateSignature("secret-key", "rnd", "/payment/3dsecure/auth", body))
	assert.NotEqual(t, base, GenerateSignature("other-secret", "rnd", "/payment/detail", body))
}

func TestBuildAuthorizationHeader(t *testing.T) {
	body := []byte(`{"conversationId":"c-1"}`)

	header, err := BuildAuthorizationHeader("api-key", "secret-key", "rnd-1", "/payment/detail", body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(header, "IYZWSv2 "))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "IYZWSv2 "))
	require.NoError(t, err)

	signature := GenerateSignature("secret-key", "rnd-1", "/payment/detail", body)
	assert.Equal(t, "apiKey:api-key&randomKey:rnd-1&signature:"+signature, string(decoded))
}

func TestBuildAuthorizationHeaderEmptySecret(t *testing.T) {
	_, err := BuildAuthorizationHeader("api-key", "", "rnd", "/payment/detail", []byte("{}"))
	assert.ErrorIs(t, err, ErrEmptySecretKey)
}

func TestNewRandomKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	key := NewRandomKey(now)

	assert.Equal(t, "1700000000000123456789", key)
	assert.NotEqual(t, key, NewRandomKey(now.Add(time.Millisecond)))
}
