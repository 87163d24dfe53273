package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTService_IssueParseScannerToken(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	tok, err := svc.IssueScannerToken(" front-desk-1 ")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.Token == "" || tok.ExpiresAt.IsZero() {
		t.Fatalf("expected token and expiry, got %+v", tok)
	}

	claims, err := svc.ParseScannerToken(tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ScannerID != "front-desk-1" || claims.Subject != "front-desk-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestJWTService_RejectsEmptyInputs(t *testing.T) {
	if _, err := NewJWTService("", time.Hour).IssueScannerToken("desk"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid without secret, got %v", err)
	}
	if _, err := NewJWTService("secret", time.Hour).IssueScannerToken("  "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for blank scanner id, got %v", err)
	}
	if _, err := NewJWTService("secret", time.Hour).ParseScannerToken(""); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for blank token, got %v", err)
	}
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute)
	issued := time.Now().UTC().Add(-time.Hour)
	svc.now = func() time.Time { return issued }
	tok, err := svc.IssueScannerToken("desk")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC() }
	if _, err := svc.ParseScannerToken(tok.Token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_WrongSecretOrType(t *testing.T) {
	tok, err := NewJWTService("secret", time.Hour).IssueScannerToken("desk")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewJWTService("other", time.Hour).ParseScannerToken(tok.Token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong secret, got %v", err)
	}

	now := time.Now().UTC()
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ScannerID: "desk",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "memberbot",
			Subject:   "desk",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTService("secret", time.Hour).ParseScannerToken(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong token type, got %v", err)
	}
}
