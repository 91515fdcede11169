package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

// CacheStore persists the token cache in a relational database. Every entity
// row is addressed by its cache key; a whole CacheRecord commits inside one
// transaction so a partially written response is never observable.
type CacheStore struct {
	db            *bun.DB
	accounts      repository.Repository[*accountRecord]
	idTokens      repository.Repository[*idTokenRecord]
	accessTokens  repository.Repository[*accessTokenRecord]
	refreshTokens repository.Repository[*refreshTokenRecord]
	appMetadata   repository.Repository[*appMetadataRecord]
}

func (s *CacheStore) GetAccount(ctx context.Context, key string) (core.AccountEntity, bool, error) {
	if s == nil || s.accounts == nil {
		return core.AccountEntity{}, false, fmt.Errorf("sqlstore: cache store is not configured")
	}
	records, _, err := s.accounts.List(ctx,
		repository.SelectBy("cache_key", "=", strings.TrimSpace(key)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AccountEntity{}, false, err
	}
	if len(records) == 0 {
		return core.AccountEntity{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *CacheStore) SaveCacheRecord(ctx context.Context, record core.CacheRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: cache store is not configured")
	}
	if record.Empty() {
		return nil
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if record.Account != nil {
			if err := upsertByCacheKey(ctx, tx, newAccountRecord(*record.Account, now)); err != nil {
				return fmt.Errorf("sqlstore: save account: %w", err)
			}
		}
		if record.IDToken != nil {
			if err := upsertByCacheKey(ctx, tx, newIDTokenRecord(*record.IDToken, now)); err != nil {
				return fmt.Errorf("sqlstore: save id token: %w", err)
			}
		}
		if record.AccessToken != nil {
			if err := upsertByCacheKey(ctx, tx, newAccessTokenRecord(*record.AccessToken, now)); err != nil {
				return fmt.Errorf("sqlstore: save access token: %w", err)
			}
		}
		if record.RefreshToken != nil {
			if err := upsertByCacheKey(ctx, tx, newRefreshTokenRecord(*record.RefreshToken, now)); err != nil {
				return fmt.Errorf("sqlstore: save refresh token: %w", err)
			}
		}
		if record.AppMetadata != nil {
			if err := upsertByCacheKey(ctx, tx, newAppMetadataRecord(*record.AppMetadata, now)); err != nil {
				return fmt.Errorf("sqlstore: save app metadata: %w", err)
			}
		}
		return nil
	})
}

// GetAccessToken looks up one cached access token by its full cache key.
func (s *CacheStore) GetAccessToken(ctx context.Context, key string) (core.AccessTokenEntity, bool, error) {
	if s == nil || s.accessTokens == nil {
		return core.AccessTokenEntity{}, false, fmt.Errorf("sqlstore: cache store is not configured")
	}
	records, _, err := s.accessTokens.List(ctx,
		repository.SelectBy("cache_key", "=", strings.TrimSpace(key)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AccessTokenEntity{}, false, err
	}
	if len(records) == 0 {
		return core.AccessTokenEntity{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// GetRefreshToken looks up one cached refresh token by its full cache key.
func (s *CacheStore) GetRefreshToken(ctx context.Context, key string) (core.RefreshTokenEntity, bool, error) {
	if s == nil || s.refreshTokens == nil {
		return core.RefreshTokenEntity{}, false, fmt.Errorf("sqlstore: cache store is not configured")
	}
	records, _, err := s.refreshTokens.List(ctx,
		repository.SelectBy("cache_key", "=", strings.TrimSpace(key)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.RefreshTokenEntity{}, false, err
	}
	if len(records) == 0 {
		return core.RefreshTokenEntity{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// Accounts lists every cached account, newest first.
func (s *CacheStore) Accounts(ctx context.Context) ([]core.AccountEntity, error) {
	if s == nil || s.accounts == nil {
		return nil, fmt.Errorf("sqlstore: cache store is not configured")
	}
	records, _, err := s.accounts.List(ctx, repository.OrderBy("updated_at DESC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.AccountEntity, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// RemoveAccount deletes the account row and every token row sharing its home
// account id and environment.
func (s *CacheStore) RemoveAccount(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: cache store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: account cache key is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account := &accountRecord{}
		err := tx.NewSelect().Model(account).Where("cache_key = ?", key).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*accountRecord)(nil)).Where("cache_key = ?", key).Exec(ctx); err != nil {
			return err
		}
		for _, model := range []any{
			(*idTokenRecord)(nil),
			(*accessTokenRecord)(nil),
			(*refreshTokenRecord)(nil),
		} {
			if _, err := tx.NewDelete().Model(model).
				Where("home_account_id = ?", account.HomeAccountID).
				Where("environment = ?", account.Environment).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

type cacheKeyedRecord interface {
	*accountRecord | *idTokenRecord | *accessTokenRecord | *refreshTokenRecord | *appMetadataRecord
}

// upsertByCacheKey keeps one row per cache key: the insert replaces the row's
// payload but preserves the original id and created_at.
func upsertByCacheKey[T cacheKeyedRecord](ctx context.Context, tx bun.Tx, record T) error {
	cacheKey, setID := recordAccessors(record)

	var existingID string
	err := tx.NewSelect().
		Model(record).
		Column("id").
		Where("cache_key = ?", cacheKey).
		Limit(1).
		Scan(ctx, &existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if strings.TrimSpace(existingID) != "" {
		setID(existingID)
		_, err = tx.NewUpdate().
			Model(record).
			ExcludeColumn("created_at").
			WherePK().
			Exec(ctx)
		return err
	}

	setID(uuid.NewString())
	_, err = tx.NewInsert().Model(record).Exec(ctx)
	return err
}

func recordAccessors[T cacheKeyedRecord](record T) (cacheKey string, setID func(string)) {
	switch typed := any(record).(type) {
	case *accountRecord:
		return typed.CacheKey, func(id string) { typed.ID = id }
	case *idTokenRecord:
		return typed.CacheKey, func(id string) { typed.ID = id }
	case *accessTokenRecord:
		return typed.CacheKey, func(id string) { typed.ID = id }
	case *refreshTokenRecord:
		return typed.CacheKey, func(id string) { typed.ID = id }
	case *appMetadataRecord:
		return typed.CacheKey, func(id string) { typed.ID = id }
	default:
		return "", func(string) {}
	}
}

var _ core.CacheStore = (*CacheStore)(nil)
