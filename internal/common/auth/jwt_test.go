package auth

import (
	"testing"
	"time"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "fleetlinkbook-test",
		Audience:  "booking",
	}

	token, expiresAt, err := GenerateAccessToken(cfg, "user-1", []string{"user", "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiresAt in the future, got %v", expiresAt)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret-a", Issuer: "fleetlinkbook-test"}
	token, _, err := GenerateAccessToken(cfg, "user-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	other := config.AuthConfig{JWTSecret: "secret-b", Issuer: "fleetlinkbook-test"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected parse with wrong secret to fail")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret", Issuer: "issuer-a"}
	token, _, err := GenerateAccessToken(cfg, "user-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	other := config.AuthConfig{JWTSecret: "secret", Issuer: "issuer-b"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected parse with wrong issuer to fail")
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := BearerToken("  bearer   xyz "); got != "xyz" {
		t.Fatalf("expected xyz, got %q", got)
	}
	if got := BearerToken("abc"); got != "abc" {
		t.Fatalf("expected raw token passthrough, got %q", got)
	}
}
