package identity

import (
	"github.com/goliatone/go-identity/core"
	memorystore "github.com/goliatone/go-identity/store/memory"
	sqlstore "github.com/goliatone/go-identity/store/sql"
)

type Config = core.Config

type InteractionRequiredConfig = core.InteractionRequiredConfig

type Option = core.Option

type ResponseHandler = core.ResponseHandler

type HandleTokenResponseRequest = core.HandleTokenResponseRequest
type BuildResultInput = core.BuildResultInput
type AuthenticationResult = core.AuthenticationResult

type Authority = core.Authority
type AuthorityType = core.AuthorityType
type AuthorizationCodePayload = core.AuthorizationCodePayload
type TokenResponse = core.TokenResponse
type IDTokenClaims = core.IDTokenClaims
type ClientInfo = core.ClientInfo
type LibraryState = core.LibraryState
type RequestState = core.RequestState

type Account = core.Account
type CacheRecord = core.CacheRecord
type CacheStore = core.CacheStore
type CachePlugin = core.CachePlugin
type CacheAccessContext = core.CacheAccessContext
type TokenParser = core.TokenParser
type ClientInfoDecoder = core.ClientInfoDecoder
type PoPSigner = core.PoPSigner
type PoPSignRequest = core.PoPSignRequest
type MetricsRecorder = core.MetricsRecorder

const (
	AuthorityTypeAAD     = core.AuthorityTypeAAD
	AuthorityTypeADFS    = core.AuthorityTypeADFS
	AuthorityTypeB2C     = core.AuthorityTypeB2C
	AuthorityTypeGeneric = core.AuthorityTypeGeneric

	TokenTypeBearer = core.TokenTypeBearer
	TokenTypePoP    = core.TokenTypePoP
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithCacheStore        = core.WithCacheStore
	WithCachePlugin       = core.WithCachePlugin
	WithTokenParser       = core.WithTokenParser
	WithClientInfoDecoder = core.WithClientInfoDecoder
	WithPoPSigner         = core.WithPoPSigner
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewResponseHandler(cfg Config, opts ...Option) (*ResponseHandler, error) {
	return core.NewResponseHandler(cfg, opts...)
}

// Setup builds a handler backed by the in-memory cache store. Options run
// after the default store is applied, so an explicit WithCacheStore wins.
func Setup(cfg Config, opts ...Option) (*ResponseHandler, error) {
	options := make([]Option, 0, len(opts)+1)
	options = append(options, core.WithCacheStore(memorystore.NewStore()))
	options = append(options, opts...)
	return core.NewResponseHandler(cfg, options...)
}

// NewSQLCacheStore wires the bun-backed cache store from a persistence client
// or *bun.DB, for callers that want durable cache storage.
func NewSQLCacheStore(persistenceClient any) (*sqlstore.CacheStore, error) {
	factory := sqlstore.NewRepositoryFactory()
	if err := factory.BuildStores(persistenceClient); err != nil {
		return nil, err
	}
	return factory.CacheStore(), nil
}
