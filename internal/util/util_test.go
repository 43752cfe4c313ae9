package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestValidateJWTHMAC(t *testing.T) {
	claims := Claims{
		Email: "jane@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	got, err := ValidateJWT(signHS256(t, "secret", claims), "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, "jane@example.com", got.Email)

	_, err = ValidateJWT(signHS256(t, "other", claims), "secret")
	assert.Error(t, err)
}

func TestValidateJWTRejectsExpiredAndSubjectless(t *testing.T) {
	expired := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	_, err := ValidateJWT(signHS256(t, "secret", expired), "secret")
	assert.Error(t, err)

	_, err = ValidateJWT(signHS256(t, "secret", Claims{}), "secret")
	assert.Error(t, err)
}

func TestValidateJWTECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)

	got, err := ValidateJWT(tok, pemKey)
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.Subject)

	_, err = ParseRSAPublicKey(pemKey)
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not-a-token", "secret")
	assert.Error(t, err)
}

func TestValidateJWTRejectsUnsignedToken(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(tok, "secret")
	assert.Error(t, err)
}

func TestValidateJWTRejectsKeyOfWrongType(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(mustRSAKey(t))
	require.NoError(t, err)

	_, err = ValidateJWT(tok, pemKey)
	assert.Error(t, err)
}

func mustRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}
