package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// JWKS is a JSON Web Key Set as served by an identity provider.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is one public key of a JWKS. Only EC and RSA signing keys are read.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// SigningKey returns the first key usable for signature verification.
func (s JWKS) SigningKey() (JWK, error) {
	for _, k := range s.Keys {
		if k.Use == "" || k.Use == "sig" {
			return k, nil
		}
	}
	return JWK{}, errors.New("no signing key in JWKS")
}

// PublicKeyPEM encodes the key as a PKIX "PUBLIC KEY" PEM block, the form
// ValidateJWT accepts for ES* and RS* tokens.
func (k JWK) PublicKeyPEM() (string, error) {
	var pub any
	switch k.Kty {
	case "EC":
		curve, err := jwkCurve(k.Crv)
		if err != nil {
			return "", err
		}
		x, err := decodeBigInt("x", k.X)
		if err != nil {
			return "", err
		}
		y, err := decodeBigInt("y", k.Y)
		if err != nil {
			return "", err
		}
		pub = &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	case "RSA":
		n, err := decodeBigInt("n", k.N)
		if err != nil {
			return "", err
		}
		e, err := decodeBigInt("e", k.E)
		if err != nil {
			return "", err
		}
		if !e.IsInt64() || e.Int64() > 1<<31-1 {
			return "", errors.New("RSA exponent out of range")
		}
		pub = &rsa.PublicKey{N: n, E: int(e.Int64())}
	default:
		return "", fmt.Errorf("unsupported key type %q", k.Kty)
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func jwkCurve(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}
}

func decodeBigInt(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing %s", name)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return new(big.Int).SetBytes(b), nil
}
