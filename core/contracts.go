package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// CacheStore is the persisted token cache the pipeline commits to. The store
// applies a whole CacheRecord as one unit; its internal atomicity guarantees
// are the store's own concern.
type CacheStore interface {
	GetAccount(ctx context.Context, key string) (AccountEntity, bool, error)
	SaveCacheRecord(ctx context.Context, record CacheRecord) error
}

// CacheAccessContext is handed to the persistence plugin hooks around every
// store access.
type CacheAccessContext struct {
	ClientID     string
	Operation    string
	PartitionKey string
}

const (
	CacheOperationWrite = "write"
)

// CachePlugin is the optional persistence lifecycle hook pair. When
// BeforeCacheAccess runs, AfterCacheAccess runs exactly once on every exit
// path of the commit, including store-write failure.
type CachePlugin interface {
	BeforeCacheAccess(ctx context.Context, access *CacheAccessContext) error
	AfterCacheAccess(ctx context.Context, access *CacheAccessContext) error
}

// TokenParser decodes a raw identity token into claims. Cryptographic
// verification policy belongs to the implementation; the pipeline layers only
// domain checks (nonce matching) on top.
type TokenParser interface {
	ParseIDToken(ctx context.Context, rawToken string) (IDTokenClaims, error)
}

// ClientInfoDecoder decodes the opaque client_info payload returned by
// directory-backed authorities.
type ClientInfoDecoder interface {
	DecodeClientInfo(raw string) (ClientInfo, error)
}

// PoPSignRequest carries the inputs for binding an access token to a resource
// request.
type PoPSignRequest struct {
	Secret string
	Method string
	URI    string
	Nonce  string
}

// PoPSigner produces the proof-of-possession token that replaces the stored
// secret in caller-facing results. Signing may round-trip to hardware-backed
// keys.
type PoPSigner interface {
	SignPoP(ctx context.Context, req PoPSignRequest) (string, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
