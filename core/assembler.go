package core

import (
	"strings"
	"time"
)

// recordAssembler derives the persistable cache entities from a validated
// token response. Assembly is pure; the commit step owns every store touch.
type recordAssembler struct {
	clientID string
	now      func() time.Time
}

// AssembleInput carries the per-call material the derivation rules branch on.
// Claims and LibraryState are optional; RequestScopes back-fill the access
// token target when the response carries no scope of its own.
type AssembleInput struct {
	Response      TokenResponse
	Authority     Authority
	Claims        *IDTokenClaims
	LibraryState  *LibraryState
	RequestScopes []string
	OBOAssertion  string
}

// Assemble builds the cache record for one response. Every entity is
// optional and only derived from a non-empty raw secret; the home account id
// is computed once and shared by all of them.
func (a recordAssembler) Assemble(in AssembleInput, info *ClientInfo) (CacheRecord, error) {
	environment := in.Authority.Environment()
	if environment == "" {
		return CacheRecord{}, newInvalidCacheEnvironmentError(in.Authority)
	}

	homeAccountID := buildHomeAccountID(in.Authority, info, in.Claims)
	now := a.timestamp()
	record := CacheRecord{}

	if strings.TrimSpace(in.Response.IDToken) != "" && in.Claims != nil {
		realm := strings.TrimSpace(in.Claims.TenantID)
		record.IDToken = &IDTokenEntity{
			HomeAccountID: homeAccountID,
			Environment:   environment,
			ClientID:      a.clientID,
			Realm:         realm,
			Secret:        in.Response.IDToken,
			CachedAt:      now,
		}

		account, err := a.deriveAccount(in, info, homeAccountID, environment, realm)
		if err != nil {
			return CacheRecord{}, err
		}
		record.Account = account
	}

	if strings.TrimSpace(in.Response.AccessToken) != "" {
		record.AccessToken = a.deriveAccessToken(in, homeAccountID, environment, now)
	}

	if strings.TrimSpace(in.Response.RefreshToken) != "" {
		refreshToken := &RefreshTokenEntity{
			HomeAccountID: homeAccountID,
			Environment:   environment,
			ClientID:      a.clientID,
			Secret:        in.Response.RefreshToken,
			FamilyID:      in.Response.FamilyID,
			CachedAt:      now,
		}
		if in.Response.RefreshTokenExpiresIn > 0 {
			refreshToken.ExpiresOn = now + in.Response.RefreshTokenExpiresIn
		}
		record.RefreshToken = refreshToken
	}

	if strings.TrimSpace(in.Response.FamilyID) != "" {
		record.AppMetadata = &AppMetadataEntity{
			ClientID:    a.clientID,
			Environment: environment,
			FamilyID:    in.Response.FamilyID,
		}
	}

	return record, nil
}

// deriveAccount branches on authority type: ADFS accounts come from claims
// alone, directory-backed authorities require a decoded client_info.
func (a recordAssembler) deriveAccount(
	in AssembleInput,
	info *ClientInfo,
	homeAccountID string,
	environment string,
	realm string,
) (*AccountEntity, error) {
	claims := in.Claims

	if !in.Authority.RequiresClientInfo() {
		return &AccountEntity{
			HomeAccountID:  homeAccountID,
			Environment:    environment,
			Realm:          realm,
			LocalAccountID: claims.LocalAccountID(),
			Username:       claims.LoginHint(),
			Name:           claims.Name,
			AuthorityType:  in.Authority.Type,
		}, nil
	}

	if strings.TrimSpace(in.Response.ClientInfo) == "" || info == nil {
		return nil, newClientInfoEmptyError(in.Authority)
	}

	return &AccountEntity{
		HomeAccountID:  homeAccountID,
		Environment:    environment,
		Realm:          realm,
		LocalAccountID: claims.LocalAccountID(),
		Username:       claims.LoginHint(),
		Name:           claims.Name,
		AuthorityType:  in.Authority.Type,
		ClientInfo:     in.Response.ClientInfo,
	}, nil
}

// deriveAccessToken applies the expiration arithmetic against the library
// state timestamp when one was echoed back, so clock skew between request and
// response does not inflate the token lifetime.
func (a recordAssembler) deriveAccessToken(
	in AssembleInput,
	homeAccountID string,
	environment string,
	now int64,
) *AccessTokenEntity {
	target := strings.TrimSpace(in.Response.Scope)
	if target == "" {
		target = joinScopes(in.RequestScopes)
	}

	base := now
	if in.LibraryState != nil && in.LibraryState.Timestamp > 0 {
		base = in.LibraryState.Timestamp
	}
	expiresOn := base + in.Response.ExpiresIn
	extendedExpiresOn := expiresOn + in.Response.ExtExpiresIn

	realm := strings.TrimSpace(in.Authority.Tenant)
	if in.Claims != nil {
		realm = strings.TrimSpace(in.Claims.TenantID)
	}

	tokenType := strings.TrimSpace(in.Response.TokenType)
	if tokenType == "" {
		tokenType = TokenTypeBearer
	}

	return &AccessTokenEntity{
		HomeAccountID:     homeAccountID,
		Environment:       environment,
		ClientID:          a.clientID,
		Realm:             realm,
		Target:            target,
		Secret:            in.Response.AccessToken,
		TokenType:         tokenType,
		CachedAt:          now,
		ExpiresOn:         expiresOn,
		ExtendedExpiresOn: extendedExpiresOn,
		UserAssertion:     strings.TrimSpace(in.OBOAssertion),
	}
}

func (a recordAssembler) timestamp() int64 {
	if a.now != nil {
		return a.now().UTC().Unix()
	}
	return time.Now().UTC().Unix()
}
