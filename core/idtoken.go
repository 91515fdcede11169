package core

import (
	"context"
	"strings"
)

// idTokenProcessor layers domain checks on top of the injected TokenParser.
// JWT decoding and signature policy stay with the parser implementation.
type idTokenProcessor struct {
	parser TokenParser
}

// Parse decodes the raw identity token and enforces the nonce binding: when
// the caller cached a nonce and the token carries one, they must match
// exactly. Either side being absent means no nonce was required for the
// request and is not an error.
func (p idTokenProcessor) Parse(ctx context.Context, rawToken, cachedNonce string) (IDTokenClaims, error) {
	claims, err := p.parser.ParseIDToken(ctx, rawToken)
	if err != nil {
		return IDTokenClaims{}, err
	}

	cachedNonce = strings.TrimSpace(cachedNonce)
	tokenNonce := strings.TrimSpace(claims.Nonce)
	if cachedNonce != "" && tokenNonce != "" && cachedNonce != tokenNonce {
		return IDTokenClaims{}, newNonceMismatchError()
	}

	return claims, nil
}
