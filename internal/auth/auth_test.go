package auth

import (
	"strings"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)

	token, jti, err := mgr.GenerateAccessToken("uid-1", "lider@prefsb.com", "lider")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "uid-1" || claims.Email != "lider@prefsb.com" || claims.Role != "lider" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID != jti {
		t.Fatalf("expected jti %s got %s", jti, claims.ID)
	}
}

func TestJWTRejectsOtherSecret(t *testing.T) {
	a := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	b := NewJWTManager("fedcba9876543210fedcba9876543210", time.Minute)

	token, _, err := a.GenerateAccessToken("uid-1", "x@prefsb.com", "trabalhador")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := b.ParseAndValidate(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestJWTExpired(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", -time.Minute)
	token, _, err := mgr.GenerateAccessToken("uid-1", "x@prefsb.com", "lider")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := mgr.ParseAndValidate(token); err == nil {
		t.Fatalf("expected expiration error")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := Hash("segredo123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := Verify("segredo123", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = Verify("outra", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestRefreshTokens(t *testing.T) {
	raw, hashed, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == hashed || HashRefreshToken(raw) != hashed {
		t.Fatalf("hash mismatch")
	}
	if !strings.HasPrefix(RefreshRedisKey(hashed), "refresh:demandas:") {
		t.Fatalf("unexpected key %s", RefreshRedisKey(hashed))
	}
}
