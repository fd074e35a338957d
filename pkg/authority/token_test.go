package authority

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "token-test-secret"

func signHS256(t *testing.T, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func adminClaims(authorityToken string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-user",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Capability: CapabilityAdmin,
		Token:      authorityToken,
	}
}

func TestTokenVerifier_Exchange(t *testing.T) {
	verifier, err := NewTokenVerifier(&VerifierConfig{
		EnableVerification: true,
		Secret:             testSecret,
	})
	require.NoError(t, err)

	keeper := NewKeeper(FromToken("cap-token"))

	auth, err := verifier.Exchange(signHS256(t, adminClaims("cap-token")))
	require.NoError(t, err)
	assert.NoError(t, keeper.Verify(auth))
}

func TestTokenVerifier_Exchange_WrongSecret(t *testing.T) {
	verifier, err := NewTokenVerifier(&VerifierConfig{
		EnableVerification: true,
		Secret:             "different-secret",
	})
	require.NoError(t, err)

	_, err = verifier.Exchange(signHS256(t, adminClaims("cap-token")))
	assert.Error(t, err)
}

func TestTokenVerifier_Exchange_WrongCapability(t *testing.T) {
	verifier, err := NewTokenVerifier(&VerifierConfig{
		EnableVerification: true,
		Secret:             testSecret,
	})
	require.NoError(t, err)

	claims := adminClaims("cap-token")
	claims.Capability = "engine:reader"

	_, err = verifier.Exchange(signHS256(t, claims))
	assert.ErrorContains(t, err, "capability")
}

func TestTokenVerifier_Exchange_Expired(t *testing.T) {
	verifier, err := NewTokenVerifier(&VerifierConfig{
		EnableVerification: true,
		Secret:             testSecret,
	})
	require.NoError(t, err)

	claims := adminClaims("cap-token")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err = verifier.Exchange(signHS256(t, claims))
	assert.Error(t, err)
}

func TestTokenVerifier_Exchange_VerificationDisabled(t *testing.T) {
	verifier, err := NewTokenVerifier(&VerifierConfig{EnableVerification: false})
	require.NoError(t, err)

	// Any structurally valid token passes, signature ignored.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims("cap-token")).
		SignedString([]byte("whatever"))
	require.NoError(t, err)

	auth, err := verifier.Exchange(signed)
	require.NoError(t, err)
	assert.NoError(t, NewKeeper(FromToken("cap-token")).Verify(auth))
}
