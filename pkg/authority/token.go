package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// CapabilityAdmin is the claim value that marks a token as carrying the
// administrator capability.
const CapabilityAdmin = "engine:admin"

// Claims is the JWT claim set accepted by the token verifier. The capability
// claim carries the raw Authority token; identity claims (sub, iss) are for
// the caller's audit trail, not for the engine's own decision.
type Claims struct {
	jwt.RegisteredClaims
	Capability string `json:"cap,omitempty"`
	Token      string `json:"tok,omitempty"`
}

// VerifierConfig configures admin token verification.
type VerifierConfig struct {
	// EnableVerification controls whether signatures are checked. Set to
	// false only for local development; tokens are then parsed unverified.
	EnableVerification bool
	// Secret is the HS256 signing secret for locally issued admin tokens.
	Secret string
	// JWKSEndpoints maps issuer URLs to JWKS endpoint URLs for RS256 tokens
	// minted by an external auth server. Only listed issuers are accepted.
	JWKSEndpoints map[string]string
}

// TokenVerifier exchanges a signed admin JWT for an Authority value.
// HS256 tokens are verified against the configured secret; RS256 tokens
// against the issuer's JWKS public keys.
type TokenVerifier struct {
	config    *VerifierConfig
	endpoints map[string]keyfunc.Keyfunc
}

// NewTokenVerifier creates a verifier, fetching JWKS from all configured
// endpoints when verification is enabled.
func NewTokenVerifier(config *VerifierConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{
		config:    config,
		endpoints: make(map[string]keyfunc.Keyfunc),
	}

	if !config.EnableVerification {
		return v, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		v.endpoints[issuer] = jwks
	}

	return v, nil
}

// Exchange validates tokenString and returns the Authority it carries.
// The token must carry the admin capability claim.
func (v *TokenVerifier) Exchange(tokenString string) (Authority, error) {
	claims, err := v.validate(tokenString)
	if err != nil {
		return Authority{}, err
	}
	if claims.Capability != CapabilityAdmin {
		return Authority{}, fmt.Errorf("token does not carry capability %q", CapabilityAdmin)
	}
	return FromToken(claims.Token), nil
}

func (v *TokenVerifier) validate(tokenString string) (*Claims, error) {
	if !v.config.EnableVerification {
		return v.parseUnverified(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if v.config.Secret == "" {
				return nil, errors.New("no HS256 secret configured")
			}
			return []byte(v.config.Secret), nil
		case *jwt.SigningMethodRSA:
			claims, ok := token.Claims.(*Claims)
			if !ok {
				return nil, errors.New("invalid claims type")
			}
			jwks, exists := v.endpoints[claims.Issuer]
			if !exists {
				return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
			}
			return jwks.KeyfuncCtx(context.Background())(token)
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// parseUnverified parses a token without checking its signature. Development
// mode only.
func (v *TokenVerifier) parseUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
