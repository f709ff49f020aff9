package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
)

// Only asymmetric algorithms; prevents algorithm confusion attacks.
var allowedAlgorithms = []string{"RS256", "ES256"}

// JWKSVerifier implements JWTVerifier against the identity provider's published keys.
type JWKSVerifier struct {
	keyfunc      jwt.Keyfunc
	issuer       string
	audience     string
	requiredRole string
	cancel       context.CancelFunc
	logger       *slog.Logger
}

// VerifierOption configures optional claim checks.
type VerifierOption func(*JWKSVerifier)

// WithIssuer requires the iss claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *JWKSVerifier) { v.issuer = issuer }
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(v *JWKSVerifier) { v.audience = audience }
}

// WithRequiredRole requires the role claim, e.g. "authenticated" to reject anonymous tokens.
func WithRequiredRole(role string) VerifierOption {
	return func(v *JWKSVerifier) { v.requiredRole = role }
}

// NewJWKSVerifier fetches public keys from jwksURL. Keys are cached and refreshed in
// the background until Close.
func NewJWKSVerifier(jwksURL string, logger *slog.Logger, opts ...VerifierOption) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	v := NewStaticVerifier(jwks.Keyfunc, logger, opts...)
	v.cancel = cancel

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return v, nil
}

// NewStaticVerifier verifies against a fixed key function.
func NewStaticVerifier(kf jwt.Keyfunc, logger *slog.Logger, opts ...VerifierOption) *JWKSVerifier {
	v := &JWKSVerifier{keyfunc: kf, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyToken validates a JWT token and extracts the identity claims.
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.IdentityClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := &models.IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, parserOpts...)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	if v.requiredRole != "" && claims.Role != v.requiredRole {
		v.logger.Warn("token has unexpected role",
			"role", claims.Role,
			"expected", v.requiredRole,
			"user_id", claims.Subject,
		)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close stops the JWKS refresh loop.
func (v *JWKSVerifier) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	v.logger.Info("JWT verifier closed")
	return nil
}
