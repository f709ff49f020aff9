package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"skynotes/internal/domain"
	"skynotes/internal/domain/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func staticKeyfunc(key *rsa.PrivateKey) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims models.IdentityClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() models.IdentityClaims {
	return models.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://auth.example.com",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "user@example.com",
		Role:  "authenticated",
	}
}

func TestJWKSVerifier_VerifyToken(t *testing.T) {
	key := generateKey(t)
	otherKey := generateKey(t)

	verifier := NewStaticVerifier(staticKeyfunc(key), testLogger(),
		WithIssuer("https://auth.example.com"),
		WithAudience("authenticated"),
		WithRequiredRole("authenticated"),
	)

	tests := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{
			name:  "valid token",
			token: func() string { return signRS256(t, key, validClaims()) },
		},
		{
			name: "expired",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name: "no expiry",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = nil
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims()
				c.Issuer = "https://evil.example.com"
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims()
				c.Audience = jwt.ClaimStrings{"other"}
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name: "anonymous role",
			token: func() string {
				c := validClaims()
				c.Role = "anon"
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			token: func() string {
				c := validClaims()
				c.Subject = ""
				return signRS256(t, key, c)
			},
			wantErr: true,
		},
		{
			name:    "signed by another key",
			token:   func() string { return signRS256(t, otherKey, validClaims()) },
			wantErr: true,
		},
		{
			name: "symmetric algorithm",
			token: func() string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("secret"))
				if err != nil {
					t.Fatal(err)
				}
				return s
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.token" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.VerifyToken(tt.token())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Errorf("VerifyToken() error = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyToken() error = %v", err)
			}
			if s := claims.Session(); s.UserID != "user-1" || s.Email != "user@example.com" {
				t.Errorf("Session() = %+v", s)
			}
		})
	}
}

func TestJWKSVerifier_OptionalChecks(t *testing.T) {
	key := generateKey(t)
	verifier := NewStaticVerifier(staticKeyfunc(key), testLogger())

	c := validClaims()
	c.Issuer = "anyone"
	c.Audience = nil
	c.Role = ""
	if _, err := verifier.VerifyToken(signRS256(t, key, c)); err != nil {
		t.Errorf("VerifyToken() without configured checks error = %v", err)
	}
	if err := verifier.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewJWKSVerifier_RequiresURL(t *testing.T) {
	if _, err := NewJWKSVerifier("", testLogger()); err == nil {
		t.Error("NewJWKSVerifier(\"\") should fail")
	}
}
