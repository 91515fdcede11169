package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:identity_accounts,alias:ia"`

	ID             string    `bun:"id,pk"`
	CacheKey       string    `bun:"cache_key,notnull"`
	HomeAccountID  string    `bun:"home_account_id,notnull"`
	Environment    string    `bun:"environment,notnull"`
	Realm          string    `bun:"realm"`
	LocalAccountID string    `bun:"local_account_id"`
	Username       string    `bun:"username"`
	Name           string    `bun:"name"`
	AuthorityType  string    `bun:"authority_type,notnull"`
	ClientInfo     string    `bun:"client_info"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *accountRecord) toDomain() core.AccountEntity {
	return core.AccountEntity{
		HomeAccountID:  r.HomeAccountID,
		Environment:    r.Environment,
		Realm:          r.Realm,
		LocalAccountID: r.LocalAccountID,
		Username:       r.Username,
		Name:           r.Name,
		AuthorityType:  core.AuthorityType(r.AuthorityType),
		ClientInfo:     r.ClientInfo,
	}
}

func newAccountRecord(entity core.AccountEntity, now time.Time) *accountRecord {
	return &accountRecord{
		CacheKey:       entity.Key(),
		HomeAccountID:  entity.HomeAccountID,
		Environment:    entity.Environment,
		Realm:          entity.Realm,
		LocalAccountID: entity.LocalAccountID,
		Username:       entity.Username,
		Name:           entity.Name,
		AuthorityType:  string(entity.AuthorityType),
		ClientInfo:     entity.ClientInfo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

type idTokenRecord struct {
	bun.BaseModel `bun:"table:identity_id_tokens,alias:iit"`

	ID            string    `bun:"id,pk"`
	CacheKey      string    `bun:"cache_key,notnull"`
	HomeAccountID string    `bun:"home_account_id"`
	Environment   string    `bun:"environment,notnull"`
	ClientID      string    `bun:"client_id,notnull"`
	Realm         string    `bun:"realm"`
	Secret        string    `bun:"secret,notnull"`
	CachedAt      int64     `bun:"cached_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *idTokenRecord) toDomain() core.IDTokenEntity {
	return core.IDTokenEntity{
		HomeAccountID: r.HomeAccountID,
		Environment:   r.Environment,
		ClientID:      r.ClientID,
		Realm:         r.Realm,
		Secret:        r.Secret,
		CachedAt:      r.CachedAt,
	}
}

func newIDTokenRecord(entity core.IDTokenEntity, now time.Time) *idTokenRecord {
	return &idTokenRecord{
		CacheKey:      entity.Key(),
		HomeAccountID: entity.HomeAccountID,
		Environment:   entity.Environment,
		ClientID:      entity.ClientID,
		Realm:         entity.Realm,
		Secret:        entity.Secret,
		CachedAt:      entity.CachedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type accessTokenRecord struct {
	bun.BaseModel `bun:"table:identity_access_tokens,alias:iat"`

	ID                string    `bun:"id,pk"`
	CacheKey          string    `bun:"cache_key,notnull"`
	HomeAccountID     string    `bun:"home_account_id"`
	Environment       string    `bun:"environment,notnull"`
	ClientID          string    `bun:"client_id,notnull"`
	Realm             string    `bun:"realm"`
	Target            string    `bun:"target"`
	Secret            string    `bun:"secret,notnull"`
	TokenType         string    `bun:"token_type,notnull"`
	CachedAt          int64     `bun:"cached_at,notnull"`
	ExpiresOn         int64     `bun:"expires_on,notnull"`
	ExtendedExpiresOn int64     `bun:"extended_expires_on"`
	UserAssertion     string    `bun:"user_assertion"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *accessTokenRecord) toDomain() core.AccessTokenEntity {
	return core.AccessTokenEntity{
		HomeAccountID:     r.HomeAccountID,
		Environment:       r.Environment,
		ClientID:          r.ClientID,
		Realm:             r.Realm,
		Target:            r.Target,
		Secret:            r.Secret,
		TokenType:         r.TokenType,
		CachedAt:          r.CachedAt,
		ExpiresOn:         r.ExpiresOn,
		ExtendedExpiresOn: r.ExtendedExpiresOn,
		UserAssertion:     r.UserAssertion,
	}
}

func newAccessTokenRecord(entity core.AccessTokenEntity, now time.Time) *accessTokenRecord {
	return &accessTokenRecord{
		CacheKey:          entity.Key(),
		HomeAccountID:     entity.HomeAccountID,
		Environment:       entity.Environment,
		ClientID:          entity.ClientID,
		Realm:             entity.Realm,
		Target:            entity.Target,
		Secret:            entity.Secret,
		TokenType:         entity.TokenType,
		CachedAt:          entity.CachedAt,
		ExpiresOn:         entity.ExpiresOn,
		ExtendedExpiresOn: entity.ExtendedExpiresOn,
		UserAssertion:     entity.UserAssertion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

type refreshTokenRecord struct {
	bun.BaseModel `bun:"table:identity_refresh_tokens,alias:irt"`

	ID            string    `bun:"id,pk"`
	CacheKey      string    `bun:"cache_key,notnull"`
	HomeAccountID string    `bun:"home_account_id"`
	Environment   string    `bun:"environment,notnull"`
	ClientID      string    `bun:"client_id,notnull"`
	Secret        string    `bun:"secret,notnull"`
	FamilyID      string    `bun:"family_id"`
	CachedAt      int64     `bun:"cached_at,notnull"`
	ExpiresOn     int64     `bun:"expires_on"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *refreshTokenRecord) toDomain() core.RefreshTokenEntity {
	return core.RefreshTokenEntity{
		HomeAccountID: r.HomeAccountID,
		Environment:   r.Environment,
		ClientID:      r.ClientID,
		Secret:        r.Secret,
		FamilyID:      r.FamilyID,
		CachedAt:      r.CachedAt,
		ExpiresOn:     r.ExpiresOn,
	}
}

func newRefreshTokenRecord(entity core.RefreshTokenEntity, now time.Time) *refreshTokenRecord {
	return &refreshTokenRecord{
		CacheKey:      entity.Key(),
		HomeAccountID: entity.HomeAccountID,
		Environment:   entity.Environment,
		ClientID:      entity.ClientID,
		Secret:        entity.Secret,
		FamilyID:      entity.FamilyID,
		CachedAt:      entity.CachedAt,
		ExpiresOn:     entity.ExpiresOn,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type appMetadataRecord struct {
	bun.BaseModel `bun:"table:identity_app_metadata,alias:iam"`

	ID          string    `bun:"id,pk"`
	CacheKey    string    `bun:"cache_key,notnull"`
	ClientID    string    `bun:"client_id,notnull"`
	Environment string    `bun:"environment,notnull"`
	FamilyID    string    `bun:"family_id"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *appMetadataRecord) toDomain() core.AppMetadataEntity {
	return core.AppMetadataEntity{
		ClientID:    r.ClientID,
		Environment: r.Environment,
		FamilyID:    r.FamilyID,
	}
}

func newAppMetadataRecord(entity core.AppMetadataEntity, now time.Time) *appMetadataRecord {
	return &appMetadataRecord{
		CacheKey:    entity.Key(),
		ClientID:    entity.ClientID,
		Environment: entity.Environment,
		FamilyID:    entity.FamilyID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
