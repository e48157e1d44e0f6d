package auth

import (
	"testing"
	"time"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret-key-that-is-at-least-32-characters-long"})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssueAndValidateTokenPair(t *testing.T) {
	svc := testService(t)

	pair, err := svc.IssueTokenPair("admin")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Subject != "admin" || !claims.IsAccessToken() {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := svc.ValidateAccessToken(pair.RefreshToken); err != ErrInvalidTokenType {
		t.Fatalf("expected ErrInvalidTokenType using refresh token as access, got %v", err)
	}

	refreshClaims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	if !refreshClaims.IsRefreshToken() {
		t.Fatalf("expected refresh token claims")
	}
}

func TestShortSecretRejected(t *testing.T) {
	if _, err := NewService(Config{Secret: "too-short"}); err != ErrInvalidSecretLength {
		t.Fatalf("expected ErrInvalidSecretLength, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, err := NewService(Config{
		Secret:              "test-secret-key-that-is-at-least-32-characters-long",
		AccessTokenDuration: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	pair, err := svc.IssueTokenPair("admin")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.ValidateAccessToken(pair.AccessToken); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}
