// Package token decodes identity tokens into the claim view the response
// pipeline consumes. Signature policy is configurable: the default mode
// decodes without verification because the token arrived over the client's
// own TLS channel to the token endpoint, while a keyfunc-backed parser
// enforces signatures for tokens of less trusted provenance.
package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-identity/core"
)

type ParserConfig struct {
	// Keyfunc resolves the verification key. When nil, tokens are decoded
	// without signature verification.
	Keyfunc jwt.Keyfunc
	// ValidMethods restricts accepted signing algorithms when verifying.
	ValidMethods []string
	// Issuer, when set, must match the iss claim exactly.
	Issuer string
	// Audience, when set, must appear in the aud claim.
	Audience string
	Leeway   time.Duration
}

type Parser struct {
	cfg ParserConfig
}

func NewParser(cfg ParserConfig) *Parser {
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	if len(cfg.ValidMethods) == 0 {
		cfg.ValidMethods = []string{
			jwt.SigningMethodRS256.Alg(),
			jwt.SigningMethodPS256.Alg(),
			jwt.SigningMethodES256.Alg(),
		}
	}
	return &Parser{cfg: cfg}
}

func (p *Parser) ParseIDToken(_ context.Context, rawToken string) (core.IDTokenClaims, error) {
	if p == nil {
		return core.IDTokenClaims{}, fmt.Errorf("token: parser is not configured")
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return core.IDTokenClaims{}, fmt.Errorf("token: raw token is required")
	}

	mapClaims := jwt.MapClaims{}
	if p.cfg.Keyfunc == nil {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(rawToken, mapClaims); err != nil {
			return core.IDTokenClaims{}, fmt.Errorf("token: decode id token: %w", err)
		}
	} else {
		options := []jwt.ParserOption{
			jwt.WithValidMethods(p.cfg.ValidMethods),
			jwt.WithLeeway(p.cfg.Leeway),
		}
		if strings.TrimSpace(p.cfg.Issuer) != "" {
			options = append(options, jwt.WithIssuer(p.cfg.Issuer))
		}
		if strings.TrimSpace(p.cfg.Audience) != "" {
			options = append(options, jwt.WithAudience(p.cfg.Audience))
		}
		parser := jwt.NewParser(options...)
		parsed, err := parser.ParseWithClaims(rawToken, mapClaims, p.cfg.Keyfunc)
		if err != nil {
			return core.IDTokenClaims{}, fmt.Errorf("token: verify id token: %w", err)
		}
		if !parsed.Valid {
			return core.IDTokenClaims{}, fmt.Errorf("token: id token failed validation")
		}
	}

	return mapIdentityClaims(mapClaims), nil
}

func mapIdentityClaims(mc jwt.MapClaims) core.IDTokenClaims {
	raw := make(map[string]any, len(mc))
	for key, value := range mc {
		raw[key] = value
	}

	claims := core.IDTokenClaims{
		ObjectID:          stringClaim(mc, "oid"),
		Subject:           stringClaim(mc, "sub"),
		TenantID:          stringClaim(mc, "tid"),
		Nonce:             stringClaim(mc, "nonce"),
		PreferredUsername: stringClaim(mc, "preferred_username"),
		UPN:               stringClaim(mc, "upn"),
		Name:              stringClaim(mc, "name"),
		Emails:            stringSliceClaim(mc, "emails"),
		Raw:               raw,
	}
	return claims
}

func stringClaim(mc jwt.MapClaims, key string) string {
	value, _ := mc[key].(string)
	return value
}

func stringSliceClaim(mc jwt.MapClaims, key string) []string {
	switch value := mc[key].(type) {
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), value...)
	default:
		return nil
	}
}

var _ core.TokenParser = (*Parser)(nil)
