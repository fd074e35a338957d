// Package testhelpers provides utilities for testing veilshare-engine
// components.
package testhelpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
)

// TestSigningSecret is the HS256 secret used by SignAdminJWT. Configure the
// verifier under test with the same value.
const TestSigningSecret = "test-signing-secret"

// SignAdminJWT mints an HS256-signed admin token wrapping the given authority
// token. Use with a verifier that has EnableVerification on and
// TestSigningSecret as its secret.
func SignAdminJWT(t *testing.T, authorityToken string) string {
	t.Helper()

	claims := authority.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-admin",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Capability: authority.CapabilityAdmin,
		Token:      authorityToken,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign test JWT: %v", err)
	}
	return signed
}

// UnsignedAdminJWT creates a structurally valid but unsigned (alg: none)
// admin token for use when verification is disabled.
func UnsignedAdminJWT(t *testing.T, authorityToken string) string {
	t.Helper()

	claims := authority.Claims{
		Capability: authority.CapabilityAdmin,
		Token:      authorityToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to encode unsigned test JWT: %v", err)
	}
	return signed
}

// SignJWTWithCapability mints an HS256-signed token with an arbitrary
// capability claim, for testing capability rejection.
func SignJWTWithCapability(t *testing.T, capability, authorityToken string) string {
	t.Helper()

	claims := authority.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("test-%s", capability),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Capability: capability,
		Token:      authorityToken,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign test JWT: %v", err)
	}
	return signed
}
