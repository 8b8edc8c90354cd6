package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevin07696/slot-billing/internal/domain"
)

// VerifierConfig configures session token verification. Exactly one of
// Secret (HS256) or PublicKeyPEM (RS256) must be set.
type VerifierConfig struct {
	Secret       string
	PublicKeyPEM []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// TokenVerifier validates session tokens issued by the upstream session
// service and maps them to billing actors.
type TokenVerifier struct {
	hmacKey   []byte
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewTokenVerifier creates a verifier for the configured key material
func NewTokenVerifier(cfg VerifierConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{}

	var methods []string
	switch {
	case len(cfg.PublicKeyPEM) > 0:
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.publicKey = key
		methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.Secret != "":
		v.hmacKey = []byte(cfg.Secret)
		methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, fmt.Errorf("token verifier requires a secret or a public key")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// NewTokenVerifierFromFile loads an RS256 public key from disk
func NewTokenVerifierFromFile(path string, cfg VerifierConfig) (*TokenVerifier, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	cfg.PublicKeyPEM = pemBytes
	cfg.Secret = ""
	return NewTokenVerifier(cfg)
}

// Verify validates a raw token and returns its claims
func (v *TokenVerifier) Verify(tokenString string) (*domain.TokenClaims, error) {
	claims := &domain.TokenClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if v.publicKey != nil {
			return v.publicKey, nil
		}
		return v.hmacKey, nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAuthInvalid, "invalid session token", err)
	}
	if !token.Valid {
		return nil, domain.ErrAuthInvalid
	}

	switch claims.Role {
	case domain.RoleAdmin, domain.RoleMember:
		if claims.CompanyID <= 0 {
			return nil, domain.NewDomainError(domain.ErrorCodeAuthInvalid, "company_id claim is required")
		}
	case domain.RoleOperator:
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeAuthInvalid, "unknown role claim").
			WithDetail("role", claims.Role)
	}
	if claims.Subject == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAuthInvalid, "sub claim is required")
	}

	return claims, nil
}

// VerifyBearer validates an Authorization header value and returns the actor
func (v *TokenVerifier) VerifyBearer(header string) (domain.Actor, *domain.TokenClaims, error) {
	if header == "" {
		return domain.Actor{}, nil, domain.ErrAuthMissing
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return domain.Actor{}, nil, domain.NewDomainError(domain.ErrorCodeAuthInvalid, "authorization header must use the Bearer scheme")
	}

	claims, err := v.Verify(strings.TrimSpace(tokenString))
	if err != nil {
		return domain.Actor{}, nil, err
	}
	return domain.ActorFromClaims(claims), claims, nil
}
