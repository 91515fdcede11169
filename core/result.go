package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// resultBuilder projects a committed cache record into the caller-facing
// authentication result. Proof-of-possession tokens round-trip through the
// injected signer; the stored secret never leaves the cache in that case.
type resultBuilder struct {
	signer PoPSigner
}

type BuildResultInput struct {
	Record         CacheRecord
	FromCache      bool
	Claims         *IDTokenClaims
	RequestState   *RequestState
	ResourceMethod string
	ResourceURI    string
	PoPNonce       string
}

func (b resultBuilder) Build(ctx context.Context, in BuildResultInput) (AuthenticationResult, error) {
	result := AuthenticationResult{
		FromCache: in.FromCache,
		Scopes:    []string{},
		TokenType: TokenTypeBearer,
	}

	if in.Claims != nil {
		result.UniqueID = in.Claims.LocalAccountID()
		result.TenantID = in.Claims.TenantID
		result.IDTokenClaims = in.Claims
	}

	if in.Record.IDToken != nil {
		result.IDToken = in.Record.IDToken.Secret
	}

	if in.Record.Account != nil {
		account := in.Record.Account.ToAccount()
		result.Account = &account
	}

	if accessToken := in.Record.AccessToken; accessToken != nil {
		result.Scopes = accessToken.Scopes()
		result.TokenType = accessToken.TokenType

		expiresOn := time.Unix(accessToken.ExpiresOn, 0).UTC()
		extExpiresOn := time.Unix(accessToken.ExtendedExpiresOn, 0).UTC()
		result.ExpiresOn = &expiresOn
		result.ExtExpiresOn = &extExpiresOn

		token, err := b.resolveAccessToken(ctx, accessToken, in)
		if err != nil {
			return AuthenticationResult{}, err
		}
		result.AccessToken = token
	}

	result.FamilyID = recordFamilyID(in.Record)

	if in.RequestState != nil {
		result.State = in.RequestState.UserState
	}

	return result, nil
}

func (b resultBuilder) resolveAccessToken(
	ctx context.Context,
	entity *AccessTokenEntity,
	in BuildResultInput,
) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(entity.TokenType), TokenTypePoP) {
		return entity.Secret, nil
	}

	if strings.TrimSpace(in.ResourceMethod) == "" || strings.TrimSpace(in.ResourceURI) == "" {
		return "", newResourceParamsRequiredError()
	}
	if b.signer == nil {
		return "", goerrors.New("pop signer is required for pop token types", goerrors.CategoryInternal).
			WithTextCode(IdentityErrorInternal)
	}

	signed, err := b.signer.SignPoP(ctx, PoPSignRequest{
		Secret: entity.Secret,
		Method: in.ResourceMethod,
		URI:    in.ResourceURI,
		Nonce:  in.PoPNonce,
	})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryExternal, "proof-of-possession signing failed").
			WithTextCode(IdentityErrorPoPSigning)
	}
	return signed, nil
}

// recordFamilyID surfaces only the reserved family sentinel, preferring the
// app-metadata entity and falling back to the refresh token's marker.
func recordFamilyID(record CacheRecord) string {
	if record.AppMetadata != nil {
		return resolveFamilyID(record.AppMetadata.FamilyID)
	}
	if record.RefreshToken != nil {
		return resolveFamilyID(record.RefreshToken.FamilyID)
	}
	return ""
}
