package iyzico

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	// authScheme is the authorization scheme prefix iyzico expects (IYZWSv2).
	authScheme = "IYZWSv2"

	// clientVersion is echoed on every request via x-iyzi-client-version.
	clientVersion = "store-api-iyzico-go-1.0.2"

	// randomKeySuffix pads the millisecond timestamp so the random key is
	// unique even for calls landing in the same millisecond window.
	randomKeySuffix = "123456789"
)

// NewRandomKey builds the per-request random key (nonce). Uniqueness is the
// requirement here, not secrecy.
func NewRandomKey(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + randomKeySuffix
}

// GenerateSignature computes the hex HMAC-SHA256 signature over
// randomKey + uriPath + body. The body bytes must be exactly the bytes
// transmitted on the wire or the gateway will reject the call.
func GenerateSignature(secretKey, randomKey, uriPath string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(randomKey))
	mac.Write([]byte(uriPath))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildAuthorizationHeader assembles the IYZWSv2 authorization header value:
//
//	IYZWSv2 base64("apiKey:{k}&randomKey:{n}&signature:{s}")
//
// It is deterministic for identical inputs, which keeps header generation
// unit-testable without a live gateway.
func BuildAuthorizationHeader(apiKey, secretKey, randomKey, uriPath string, body []byte) (string, error) {
	if secretKey == "" {
		return "", ErrEmptySecretKey
	}
	signature := GenerateSignature(secretKey, randomKey, uriPath, body)
	raw := fmt.Sprintf("apiKey:%s&randomKey:%s&signature:%s", apiKey, randomKey, signature)
	return authScheme + " " + base64.StdEncoding.EncodeToString([]byte(raw)), nil
}
