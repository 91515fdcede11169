package core

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidAuthorityType = errors.New("core: invalid authority type")
	ErrMalformedState       = errors.New("core: malformed request state")
)

// FamilyIDSentinel is the only "foci" value that identifies a refresh token as
// shared across the reserved family of client applications. Any other value is
// not surfaced to callers.
const FamilyIDSentinel = "1"

const (
	TokenTypeBearer = "Bearer"
	TokenTypePoP    = "pop"
)

const stateDelimiter = "|"

type AuthorityType string

const (
	AuthorityTypeAAD     AuthorityType = "aad"
	AuthorityTypeADFS    AuthorityType = "adfs"
	AuthorityTypeB2C     AuthorityType = "b2c"
	AuthorityTypeGeneric AuthorityType = "generic"
)

const (
	ProtocolModeAAD  = "aad"
	ProtocolModeOIDC = "oidc"
)

// Authority describes the token issuer a response came back from. Host doubles
// as the cache environment for every derived entity.
type Authority struct {
	Type         AuthorityType
	ProtocolMode string
	Tenant       string
	Host         string
}

func (a Authority) Validate() error {
	switch a.Type {
	case AuthorityTypeAAD, AuthorityTypeADFS, AuthorityTypeB2C, AuthorityTypeGeneric:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuthorityType, a.Type)
	}
}

func (a Authority) Environment() string {
	return strings.TrimSpace(strings.ToLower(a.Host))
}

// RequiresClientInfo reports whether account derivation needs a decoded
// client_info payload. ADFS and plain-OIDC authorities derive accounts from
// claims alone.
func (a Authority) RequiresClientInfo() bool {
	switch a.Type {
	case AuthorityTypeADFS:
		return false
	case AuthorityTypeAAD, AuthorityTypeB2C:
		return true
	default:
		return strings.EqualFold(strings.TrimSpace(a.ProtocolMode), ProtocolModeAAD)
	}
}

// AuthorizationCodePayload is the redirect/fragment payload returned by the
// authorization endpoint. It is consumed once and never cached.
type AuthorizationCodePayload struct {
	Code             string `json:"code,omitempty"`
	State            string `json:"state,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	SubError         string `json:"suberror,omitempty"`
	ClientInfo       string `json:"client_info,omitempty"`
}

// TokenResponse is the JSON payload returned by the token endpoint after a
// code, refresh token, or assertion exchange.
type TokenResponse struct {
	AccessToken           string `json:"access_token,omitempty"`
	IDToken               string `json:"id_token,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	TokenType             string `json:"token_type,omitempty"`
	Scope                 string `json:"scope,omitempty"`
	ExpiresIn             int64  `json:"expires_in,omitempty"`
	ExtExpiresIn          int64  `json:"ext_expires_in,omitempty"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in,omitempty"`
	ClientInfo            string `json:"client_info,omitempty"`
	FamilyID              string `json:"foci,omitempty"`
	Error                 string `json:"error,omitempty"`
	ErrorDescription      string `json:"error_description,omitempty"`
	SubError              string `json:"suberror,omitempty"`
	ErrorCodes            []int  `json:"error_codes,omitempty"`
	Timestamp             string `json:"timestamp,omitempty"`
	CorrelationID         string `json:"correlation_id,omitempty"`
	TraceID               string `json:"trace_id,omitempty"`
}

func (r TokenResponse) HasError() bool {
	return strings.TrimSpace(r.Error) != "" ||
		strings.TrimSpace(r.ErrorDescription) != "" ||
		strings.TrimSpace(r.SubError) != ""
}

// IDTokenClaims holds the subset of identity-token claims the pipeline acts
// on. Raw keeps the full decoded claim set for callers that need more.
type IDTokenClaims struct {
	ObjectID          string
	Subject           string
	TenantID          string
	Nonce             string
	PreferredUsername string
	UPN               string
	Name              string
	Emails            []string
	Raw               map[string]any
}

// LocalAccountID is the tenant-local account identifier, preferring oid over
// sub.
func (c IDTokenClaims) LocalAccountID() string {
	if strings.TrimSpace(c.ObjectID) != "" {
		return c.ObjectID
	}
	return c.Subject
}

// LoginHint returns the best available routing hint for cache-miss requests.
func (c IDTokenClaims) LoginHint() string {
	if strings.TrimSpace(c.PreferredUsername) != "" {
		return c.PreferredUsername
	}
	if strings.TrimSpace(c.UPN) != "" {
		return c.UPN
	}
	if len(c.Emails) > 0 {
		return c.Emails[0]
	}
	return ""
}

// ClientInfo is the decoded client_info payload: the directory identifiers
// that pin an account to its home tenant.
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

func (c ClientInfo) HomeAccountID() string {
	uid := strings.TrimSpace(c.UID)
	utid := strings.TrimSpace(c.UTID)
	if uid == "" && utid == "" {
		return ""
	}
	return uid + "." + utid
}

// LibraryState is the library-internal half of the request state. The
// timestamp captures when the request left the client so token lifetimes can
// be computed against request time rather than response time.
type LibraryState struct {
	ID        string            `json:"id"`
	Timestamp int64             `json:"ts,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// RequestState is the decoded echoed state value: the library portion plus the
// caller-supplied portion that is handed back verbatim in the result.
type RequestState struct {
	Library   *LibraryState
	UserState string
}

// EncodeRequestState packs a library state and an optional user state into a
// single state parameter value.
func EncodeRequestState(library LibraryState, userState string) (string, error) {
	raw, err := json.Marshal(library)
	if err != nil {
		return "", fmt.Errorf("core: encode library state: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	if strings.TrimSpace(userState) == "" {
		return encoded, nil
	}
	return encoded + stateDelimiter + userState, nil
}

// ParseRequestState splits an echoed state value back into its library and
// user portions. A value with no decodable library prefix is treated as pure
// user state rather than rejected; the original request may predate state
// packing.
func ParseRequestState(state string) (RequestState, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return RequestState{}, fmt.Errorf("%w: empty value", ErrMalformedState)
	}
	encoded, userState, found := strings.Cut(state, stateDelimiter)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		if found {
			return RequestState{}, fmt.Errorf("%w: undecodable library portion", ErrMalformedState)
		}
		return RequestState{UserState: state}, nil
	}
	var library LibraryState
	if err := json.Unmarshal(raw, &library); err != nil {
		if found {
			return RequestState{}, fmt.Errorf("%w: library portion is not json", ErrMalformedState)
		}
		return RequestState{UserState: state}, nil
	}
	return RequestState{Library: &library, UserState: userState}, nil
}

// AccountEntity is the persisted account record, keyed by
// (homeAccountID, environment, realm).
type AccountEntity struct {
	HomeAccountID  string
	Environment    string
	Realm          string
	LocalAccountID string
	Username       string
	Name           string
	AuthorityType  AuthorityType
	ClientInfo     string
}

func (a AccountEntity) Key() string {
	return cacheKey(a.HomeAccountID, a.Environment, a.Realm)
}

// ToAccount projects the persisted entity into its public view.
func (a AccountEntity) ToAccount() Account {
	return Account{
		HomeAccountID:  a.HomeAccountID,
		Environment:    a.Environment,
		TenantID:       a.Realm,
		Username:       a.Username,
		LocalAccountID: a.LocalAccountID,
		Name:           a.Name,
	}
}

// Account is the caller-facing account view.
type Account struct {
	HomeAccountID  string
	Environment    string
	TenantID       string
	Username       string
	LocalAccountID string
	Name           string
}

// IDTokenEntity stores a raw identity token string scoped to its realm.
type IDTokenEntity struct {
	HomeAccountID string
	Environment   string
	ClientID      string
	Realm         string
	Secret        string
	CachedAt      int64
}

func (e IDTokenEntity) Key() string {
	return cacheKey(e.HomeAccountID, e.Environment, "idtoken", e.ClientID, e.Realm)
}

// AccessTokenEntity stores an access token and its expiry window. Target is
// the space-delimited scope string granted for the token.
type AccessTokenEntity struct {
	HomeAccountID     string
	Environment       string
	ClientID          string
	Realm             string
	Target            string
	Secret            string
	TokenType         string
	CachedAt          int64
	ExpiresOn         int64
	ExtendedExpiresOn int64
	UserAssertion     string
}

func (e AccessTokenEntity) Key() string {
	return cacheKey(e.HomeAccountID, e.Environment, "accesstoken", e.ClientID, e.Realm, e.Target)
}

func (e AccessTokenEntity) Scopes() []string {
	return splitScopes(e.Target)
}

// RefreshTokenEntity stores a refresh token; FamilyID carries the foci marker
// verbatim when the server returned one, which also moves the token under the
// family cache key.
type RefreshTokenEntity struct {
	HomeAccountID string
	Environment   string
	ClientID      string
	Secret        string
	FamilyID      string
	CachedAt      int64
	ExpiresOn     int64
}

func (e RefreshTokenEntity) Key() string {
	clientOrFamily := e.ClientID
	if strings.TrimSpace(e.FamilyID) != "" {
		clientOrFamily = e.FamilyID
	}
	return cacheKey(e.HomeAccountID, e.Environment, "refreshtoken", clientOrFamily)
}

// AppMetadataEntity records per-client metadata, today only family membership.
type AppMetadataEntity struct {
	ClientID    string
	Environment string
	FamilyID    string
}

func (e AppMetadataEntity) Key() string {
	return cacheKey("appmetadata", e.Environment, e.ClientID)
}

// CacheRecord aggregates the entities derived from one token response. Any
// subset of fields may be nil; the record is committed to the store as one
// unit.
type CacheRecord struct {
	Account      *AccountEntity
	IDToken      *IDTokenEntity
	AccessToken  *AccessTokenEntity
	RefreshToken *RefreshTokenEntity
	AppMetadata  *AppMetadataEntity
}

func (r CacheRecord) Empty() bool {
	return r.Account == nil && r.IDToken == nil && r.AccessToken == nil &&
		r.RefreshToken == nil && r.AppMetadata == nil
}

// AuthenticationResult is the immutable projection handed back to callers.
type AuthenticationResult struct {
	UniqueID      string
	TenantID      string
	Scopes        []string
	Account       *Account
	IDToken       string
	IDTokenClaims *IDTokenClaims
	AccessToken   string
	FromCache     bool
	ExpiresOn     *time.Time
	ExtExpiresOn  *time.Time
	FamilyID      string
	TokenType     string
	State         string
}

func cacheKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(normalized, "-")
}

func splitScopes(target string) []string {
	fields := strings.Fields(target)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}

func joinScopes(scopes []string) string {
	cleaned := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			cleaned = append(cleaned, scope)
		}
	}
	return strings.Join(cleaned, " ")
}

// buildHomeAccountID derives the stable account identifier once per call:
// client_info when the authority is directory backed, the subject claim
// otherwise.
func buildHomeAccountID(authority Authority, info *ClientInfo, claims *IDTokenClaims) string {
	if authority.RequiresClientInfo() && info != nil {
		if id := info.HomeAccountID(); id != "" {
			return id
		}
	}
	if claims != nil {
		if strings.TrimSpace(claims.Subject) != "" {
			return claims.Subject
		}
		return claims.LocalAccountID()
	}
	return ""
}

// resolveFamilyID applies the foci sentinel rule: only the reserved family
// value survives into caller-facing results.
func resolveFamilyID(familyID string) string {
	if strings.TrimSpace(familyID) == FamilyIDSentinel {
		return FamilyIDSentinel
	}
	return ""
}
