package utils

import (
	"testing"
	"time"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-1", "admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Errorf("wrong claims: %+v", claims)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, _ := GenerateJWT("user-1", "admin", "secret", time.Hour)
	if _, err := ValidateJWT(token, "other-secret"); err == nil {
		t.Error("expected validation to fail with wrong secret")
	}
}

func TestValidateJWTExpired(t *testing.T) {
	token, _ := GenerateJWT("user-1", "admin", "secret", -time.Minute)
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	if got := ExtractTokenFromHeader("Bearer abc123"); got != "abc123" {
		t.Errorf("got %q", got)
	}
	if got := ExtractTokenFromHeader(""); got != "" {
		t.Errorf("empty header: got %q", got)
	}
	if got := ExtractTokenFromHeader("Basic abc123"); got != "" {
		t.Errorf("non-bearer scheme: got %q", got)
	}
	if got := ExtractTokenFromHeader("abc123"); got != "" {
		t.Errorf("malformed header: got %q", got)
	}
}
