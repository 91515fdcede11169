package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testResultRecord() CacheRecord {
	return CacheRecord{
		Account: &AccountEntity{
			HomeAccountID:  "uid-1.utid-1",
			Environment:    "login.microsoftonline.com",
			Realm:          "tenant-1",
			LocalAccountID: "oid-1",
			Username:       "user@contoso.com",
			Name:           "Test User",
		},
		IDToken: &IDTokenEntity{Secret: "idt-secret"},
		AccessToken: &AccessTokenEntity{
			Secret:            "at-secret",
			Target:            "User.Read openid",
			TokenType:         TokenTypeBearer,
			ExpiresOn:         1_700_003_600,
			ExtendedExpiresOn: 1_700_004_200,
		},
		RefreshToken: &RefreshTokenEntity{Secret: "rt-secret", FamilyID: "1"},
		AppMetadata:  &AppMetadataEntity{ClientID: "client-1", FamilyID: "1"},
	}
}

func TestBuildResultProjectsRecord(t *testing.T) {
	builder := resultBuilder{}
	claims := &IDTokenClaims{ObjectID: "oid-1", TenantID: "tenant-1"}

	result, err := builder.Build(context.Background(), BuildResultInput{
		Record:       testResultRecord(),
		Claims:       claims,
		RequestState: &RequestState{UserState: "caller-state"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if result.UniqueID != "oid-1" || result.TenantID != "tenant-1" {
		t.Fatalf("identity fields = %q/%q", result.UniqueID, result.TenantID)
	}
	if result.IDToken != "idt-secret" {
		t.Fatalf("id token = %q", result.IDToken)
	}
	if result.AccessToken != "at-secret" {
		t.Fatalf("access token = %q", result.AccessToken)
	}
	if len(result.Scopes) != 2 || result.Scopes[0] != "User.Read" {
		t.Fatalf("scopes = %v", result.Scopes)
	}
	if result.Account == nil || result.Account.Username != "user@contoso.com" {
		t.Fatalf("account projection = %+v", result.Account)
	}
	if result.FamilyID != FamilyIDSentinel {
		t.Fatalf("family id = %q", result.FamilyID)
	}
	if result.State != "caller-state" {
		t.Fatalf("state = %q", result.State)
	}
	wantExpires := time.Unix(1_700_003_600, 0).UTC()
	if result.ExpiresOn == nil || !result.ExpiresOn.Equal(wantExpires) {
		t.Fatalf("expires on = %v", result.ExpiresOn)
	}
	wantExt := time.Unix(1_700_004_200, 0).UTC()
	if result.ExtExpiresOn == nil || !result.ExtExpiresOn.Equal(wantExt) {
		t.Fatalf("ext expires on = %v", result.ExtExpiresOn)
	}
}

func TestBuildResultSuppressesNonSentinelFoci(t *testing.T) {
	builder := resultBuilder{}
	record := testResultRecord()
	record.AppMetadata.FamilyID = "2"
	result, err := builder.Build(context.Background(), BuildResultInput{Record: record})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.FamilyID != "" {
		t.Fatalf("non-sentinel foci must not surface, got %q", result.FamilyID)
	}
}

func TestBuildResultFamilyIDFallsBackToRefreshToken(t *testing.T) {
	builder := resultBuilder{}
	record := testResultRecord()
	record.AppMetadata = nil
	result, err := builder.Build(context.Background(), BuildResultInput{Record: record})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.FamilyID != FamilyIDSentinel {
		t.Fatalf("family id = %q", result.FamilyID)
	}
}

func TestBuildResultPoPRequiresResourceParams(t *testing.T) {
	signer := &stubPoPSigner{}
	builder := resultBuilder{signer: signer}
	record := testResultRecord()
	record.AccessToken.TokenType = TokenTypePoP

	_, err := builder.Build(context.Background(), BuildResultInput{Record: record})
	if !errorHasTextCode(err, IdentityErrorResourceParamsRequired) {
		t.Fatalf("expected resource params error, got %v", err)
	}

	_, err = builder.Build(context.Background(), BuildResultInput{
		Record:         record,
		ResourceMethod: "GET",
	})
	if !errorHasTextCode(err, IdentityErrorResourceParamsRequired) {
		t.Fatalf("expected resource params error without uri, got %v", err)
	}
}

func TestBuildResultPoPSignsThroughSigner(t *testing.T) {
	signer := &stubPoPSigner{signed: "signed-pop-token"}
	builder := resultBuilder{signer: signer}
	record := testResultRecord()
	record.AccessToken.TokenType = "PoP"

	result, err := builder.Build(context.Background(), BuildResultInput{
		Record:         record,
		ResourceMethod: "GET",
		ResourceURI:    "https://graph.microsoft.com/v1.0/me",
		PoPNonce:       "srv-nonce",
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.AccessToken != "signed-pop-token" {
		t.Fatalf("access token = %q, want signer output", result.AccessToken)
	}
	if signer.last.Secret != "at-secret" || signer.last.Method != "GET" || signer.last.Nonce != "srv-nonce" {
		t.Fatalf("signer request = %+v", signer.last)
	}
}

func TestBuildResultPoPSignerFailure(t *testing.T) {
	signer := &stubPoPSigner{err: errors.New("hsm offline")}
	builder := resultBuilder{signer: signer}
	record := testResultRecord()
	record.AccessToken.TokenType = TokenTypePoP

	_, err := builder.Build(context.Background(), BuildResultInput{
		Record:         record,
		ResourceMethod: "POST",
		ResourceURI:    "https://graph.microsoft.com/v1.0/me",
	})
	if !errorHasTextCode(err, IdentityErrorPoPSigning) {
		t.Fatalf("expected pop signing error, got %v", err)
	}
}

func TestBuildResultPoPWithoutSigner(t *testing.T) {
	builder := resultBuilder{}
	record := testResultRecord()
	record.AccessToken.TokenType = TokenTypePoP

	_, err := builder.Build(context.Background(), BuildResultInput{
		Record:         record,
		ResourceMethod: "GET",
		ResourceURI:    "https://graph.microsoft.com/v1.0/me",
	})
	if !errorHasTextCode(err, IdentityErrorInternal) {
		t.Fatalf("expected internal error for missing signer, got %v", err)
	}
}

func TestBuildResultTokenlessRecord(t *testing.T) {
	builder := resultBuilder{}
	result, err := builder.Build(context.Background(), BuildResultInput{
		Record: CacheRecord{RefreshToken: &RefreshTokenEntity{Secret: "rt"}},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.AccessToken != "" || result.IDToken != "" {
		t.Fatalf("unexpected secrets in tokenless result: %+v", result)
	}
	if result.TokenType != TokenTypeBearer {
		t.Fatalf("token type default = %q", result.TokenType)
	}
	if len(result.Scopes) != 0 {
		t.Fatalf("scopes = %v", result.Scopes)
	}
	if result.ExpiresOn != nil {
		t.Fatalf("expires on must be nil without an access token")
	}
}
