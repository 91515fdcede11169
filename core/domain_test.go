package core

import (
	"strings"
	"testing"
)

func TestRequestStateRoundTrip(t *testing.T) {
	library := LibraryState{ID: "req-1", Timestamp: 1_700_000_100, Meta: map[string]string{"flow": "code"}}
	encoded, err := EncodeRequestState(library, "user-portion")
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	if !strings.Contains(encoded, stateDelimiter) {
		t.Fatalf("expected delimiter in encoded state, got %q", encoded)
	}

	parsed, err := ParseRequestState(encoded)
	if err != nil {
		t.Fatalf("parse state: %v", err)
	}
	if parsed.Library == nil {
		t.Fatalf("expected library portion")
	}
	if parsed.Library.ID != "req-1" || parsed.Library.Timestamp != 1_700_000_100 {
		t.Fatalf("unexpected library state: %+v", parsed.Library)
	}
	if parsed.UserState != "user-portion" {
		t.Fatalf("expected user state to survive, got %q", parsed.UserState)
	}
}

func TestParseRequestStateWithoutLibraryPrefix(t *testing.T) {
	parsed, err := ParseRequestState("opaque caller state !!")
	if err != nil {
		t.Fatalf("expected opaque value to parse as user state, got %v", err)
	}
	if parsed.Library != nil {
		t.Fatalf("expected no library portion")
	}
	if parsed.UserState != "opaque caller state !!" {
		t.Fatalf("unexpected user state %q", parsed.UserState)
	}
}

func TestParseRequestStateRejectsUndecodablePrefix(t *testing.T) {
	if _, err := ParseRequestState("%%%not-base64%%%" + stateDelimiter + "user"); err == nil {
		t.Fatalf("expected malformed state error")
	}
	if _, err := ParseRequestState("   "); err == nil {
		t.Fatalf("expected empty state error")
	}
}

func TestAuthorityRequiresClientInfo(t *testing.T) {
	cases := []struct {
		name      string
		authority Authority
		want      bool
	}{
		{"aad", Authority{Type: AuthorityTypeAAD}, true},
		{"b2c", Authority{Type: AuthorityTypeB2C}, true},
		{"adfs", Authority{Type: AuthorityTypeADFS}, false},
		{"generic oidc", Authority{Type: AuthorityTypeGeneric, ProtocolMode: ProtocolModeOIDC}, false},
		{"generic aad mode", Authority{Type: AuthorityTypeGeneric, ProtocolMode: ProtocolModeAAD}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.authority.RequiresClientInfo(); got != tc.want {
				t.Fatalf("RequiresClientInfo = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorityValidateRejectsUnknownType(t *testing.T) {
	if err := (Authority{Type: "dsts"}).Validate(); err == nil {
		t.Fatalf("expected invalid authority type error")
	}
	if err := testAuthority().Validate(); err != nil {
		t.Fatalf("expected aad authority to validate, got %v", err)
	}
}

func TestEnvironmentLowercasesHost(t *testing.T) {
	authority := Authority{Type: AuthorityTypeAAD, Host: "  Login.MicrosoftOnline.COM "}
	if got := authority.Environment(); got != "login.microsoftonline.com" {
		t.Fatalf("Environment = %q", got)
	}
}

func TestClientInfoHomeAccountID(t *testing.T) {
	info := ClientInfo{UID: "uid-1", UTID: "utid-1"}
	if got := info.HomeAccountID(); got != "uid-1.utid-1" {
		t.Fatalf("HomeAccountID = %q", got)
	}
	if got := (ClientInfo{}).HomeAccountID(); got != "" {
		t.Fatalf("expected empty home account id, got %q", got)
	}
}

func TestRefreshTokenKeyPrefersFamily(t *testing.T) {
	entity := RefreshTokenEntity{
		HomeAccountID: "uid.utid",
		Environment:   "login.microsoftonline.com",
		ClientID:      "client-1",
		FamilyID:      "1",
	}
	if got := entity.Key(); got != "uid.utid-login.microsoftonline.com-refreshtoken-1" {
		t.Fatalf("family key = %q", got)
	}
	entity.FamilyID = ""
	if got := entity.Key(); got != "uid.utid-login.microsoftonline.com-refreshtoken-client-1" {
		t.Fatalf("client key = %q", got)
	}
}

func TestAccessTokenEntityScopes(t *testing.T) {
	entity := AccessTokenEntity{Target: "  User.Read  openid profile "}
	scopes := entity.Scopes()
	if len(scopes) != 3 || scopes[0] != "User.Read" || scopes[2] != "profile" {
		t.Fatalf("unexpected scopes %v", scopes)
	}
}

func TestIDTokenClaimsLoginHintPreference(t *testing.T) {
	claims := IDTokenClaims{UPN: "upn@contoso.com", Emails: []string{"mail@contoso.com"}}
	if got := claims.LoginHint(); got != "upn@contoso.com" {
		t.Fatalf("LoginHint = %q", got)
	}
	claims.PreferredUsername = "preferred@contoso.com"
	if got := claims.LoginHint(); got != "preferred@contoso.com" {
		t.Fatalf("LoginHint = %q", got)
	}
	claims = IDTokenClaims{Emails: []string{"mail@contoso.com"}}
	if got := claims.LoginHint(); got != "mail@contoso.com" {
		t.Fatalf("LoginHint = %q", got)
	}
}

func TestResolveFamilyIDSentinelOnly(t *testing.T) {
	if got := resolveFamilyID("1"); got != FamilyIDSentinel {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if got := resolveFamilyID("2"); got != "" {
		t.Fatalf("expected non-sentinel foci to be suppressed, got %q", got)
	}
}
