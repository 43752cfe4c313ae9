package util

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity fields the API reads from a bearer token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

var supportedAlgs = []string{
	"HS256", "HS384", "HS512",
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// ParseECDSAPublicKey parses a PEM-encoded ECDSA public key.
func ParseECDSAPublicKey(pemKey string) (*ecdsa.PublicKey, error) {
	return parsePublicKey[*ecdsa.PublicKey](pemKey, "ECDSA")
}

// ParseRSAPublicKey parses a PEM-encoded RSA public key.
func ParseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	return parsePublicKey[*rsa.PublicKey](pemKey, "RSA")
}

func parsePublicKey[K any](pemKey, kind string) (K, error) {
	var zero K
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return zero, errors.New("no PEM block found in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return zero, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := pub.(K)
	if !ok {
		return zero, fmt.Errorf("public key is %T, want %s", pub, kind)
	}
	return key, nil
}

// verificationKey turns keyMaterial into the key type alg verifies with.
func verificationKey(alg, keyMaterial string) (any, error) {
	switch {
	case strings.HasPrefix(alg, "HS"):
		return []byte(keyMaterial), nil
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		return ParseRSAPublicKey(keyMaterial)
	case strings.HasPrefix(alg, "ES"):
		return ParseECDSAPublicKey(keyMaterial)
	}
	return nil, fmt.Errorf("unsupported signing algorithm: %s", alg)
}

// ValidateJWT verifies tokenString against keyMaterial, which is either an
// HMAC secret or a PEM public key depending on the token's algorithm. The
// token must carry a subject.
func ValidateJWT(tokenString string, keyMaterial string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return verificationKey(t.Method.Alg(), keyMaterial)
	}, jwt.WithValidMethods(supportedAlgs))
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
