package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-signing-key-0123456789abcdef")

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestParseIDTokenUnverifiedMode(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{
		"oid":                "oid-1",
		"sub":                "sub-1",
		"tid":                "tenant-1",
		"nonce":              "nonce-1",
		"preferred_username": "user@contoso.com",
		"name":               "Test User",
		"emails":             []any{"mail@contoso.com"},
	})

	parser := NewParser(ParserConfig{})
	claims, err := parser.ParseIDToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.ObjectID != "oid-1" || claims.Subject != "sub-1" || claims.TenantID != "tenant-1" {
		t.Fatalf("identity claims = %+v", claims)
	}
	if claims.Nonce != "nonce-1" {
		t.Fatalf("nonce = %q", claims.Nonce)
	}
	if claims.PreferredUsername != "user@contoso.com" {
		t.Fatalf("preferred username = %q", claims.PreferredUsername)
	}
	if len(claims.Emails) != 1 || claims.Emails[0] != "mail@contoso.com" {
		t.Fatalf("emails = %v", claims.Emails)
	}
	if claims.Raw["oid"] != "oid-1" {
		t.Fatalf("raw claims not preserved: %v", claims.Raw)
	}
}

func TestParseIDTokenVerifiedMode(t *testing.T) {
	now := time.Now()
	raw := signedToken(t, jwt.MapClaims{
		"sub": "sub-1",
		"iss": "https://issuer.example.com",
		"aud": "client-1",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	})

	parser := NewParser(ParserConfig{
		Keyfunc: func(token *jwt.Token) (any, error) {
			return testSigningKey, nil
		},
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
		Issuer:       "https://issuer.example.com",
		Audience:     "client-1",
	})
	claims, err := parser.ParseIDToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "sub-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestParseIDTokenVerifiedModeRejectsBadSignature(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "sub-1"})

	parser := NewParser(ParserConfig{
		Keyfunc: func(token *jwt.Token) (any, error) {
			return []byte("a-different-key-entirely-000000000"), nil
		},
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
	})
	if _, err := parser.ParseIDToken(context.Background(), raw); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestParseIDTokenVerifiedModeRejectsWrongIssuer(t *testing.T) {
	now := time.Now()
	raw := signedToken(t, jwt.MapClaims{
		"sub": "sub-1",
		"iss": "https://evil.example.com",
		"exp": now.Add(time.Hour).Unix(),
	})

	parser := NewParser(ParserConfig{
		Keyfunc: func(token *jwt.Token) (any, error) {
			return testSigningKey, nil
		},
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
		Issuer:       "https://issuer.example.com",
	})
	if _, err := parser.ParseIDToken(context.Background(), raw); err == nil {
		t.Fatalf("expected issuer rejection")
	}
}

func TestParseIDTokenRejectsGarbage(t *testing.T) {
	parser := NewParser(ParserConfig{})
	if _, err := parser.ParseIDToken(context.Background(), "not.a.jwt"); err == nil {
		t.Fatalf("expected decode failure")
	}
	if _, err := parser.ParseIDToken(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty token failure")
	}
}

func TestStringSliceClaimShapes(t *testing.T) {
	mc := jwt.MapClaims{"emails": "solo@contoso.com"}
	if got := stringSliceClaim(mc, "emails"); len(got) != 1 || got[0] != "solo@contoso.com" {
		t.Fatalf("string shape = %v", got)
	}
	mc = jwt.MapClaims{"emails": []string{"a@contoso.com", "b@contoso.com"}}
	if got := stringSliceClaim(mc, "emails"); len(got) != 2 {
		t.Fatalf("slice shape = %v", got)
	}
	if got := stringSliceClaim(jwt.MapClaims{}, "emails"); got != nil {
		t.Fatalf("missing claim = %v", got)
	}
}
