// Package memory provides an in-process token cache. It is the default for
// single-process clients and for tests; multi-process deployments use the sql
// store.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-identity/core"
)

// Store keeps every cache entity in process memory, keyed by the entity's
// own cache key. A whole CacheRecord is applied under one lock so readers
// never observe a partial commit.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]core.AccountEntity
	idTokens      map[string]core.IDTokenEntity
	accessTokens  map[string]core.AccessTokenEntity
	refreshTokens map[string]core.RefreshTokenEntity
	appMetadata   map[string]core.AppMetadataEntity
}

func NewStore() *Store {
	return &Store{
		accounts:      map[string]core.AccountEntity{},
		idTokens:      map[string]core.IDTokenEntity{},
		accessTokens:  map[string]core.AccessTokenEntity{},
		refreshTokens: map[string]core.RefreshTokenEntity{},
		appMetadata:   map[string]core.AppMetadataEntity{},
	}
}

func (s *Store) GetAccount(_ context.Context, key string) (core.AccountEntity, bool, error) {
	if s == nil {
		return core.AccountEntity{}, false, fmt.Errorf("memory: store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[strings.TrimSpace(key)]
	return account, ok, nil
}

func (s *Store) SaveCacheRecord(_ context.Context, record core.CacheRecord) error {
	if s == nil {
		return fmt.Errorf("memory: store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Account != nil {
		s.accounts[record.Account.Key()] = *record.Account
	}
	if record.IDToken != nil {
		s.idTokens[record.IDToken.Key()] = *record.IDToken
	}
	if record.AccessToken != nil {
		s.accessTokens[record.AccessToken.Key()] = *record.AccessToken
	}
	if record.RefreshToken != nil {
		s.refreshTokens[record.RefreshToken.Key()] = *record.RefreshToken
	}
	if record.AppMetadata != nil {
		s.appMetadata[record.AppMetadata.Key()] = *record.AppMetadata
	}
	return nil
}

// RemoveAccount deletes an account and every token tied to its home account
// id and environment. Sign-out flows call this before discarding local
// session state.
func (s *Store) RemoveAccount(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("memory: store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[strings.TrimSpace(key)]
	if !ok {
		return nil
	}
	delete(s.accounts, account.Key())
	for k, entity := range s.idTokens {
		if entity.HomeAccountID == account.HomeAccountID && entity.Environment == account.Environment {
			delete(s.idTokens, k)
		}
	}
	for k, entity := range s.accessTokens {
		if entity.HomeAccountID == account.HomeAccountID && entity.Environment == account.Environment {
			delete(s.accessTokens, k)
		}
	}
	for k, entity := range s.refreshTokens {
		if entity.HomeAccountID == account.HomeAccountID && entity.Environment == account.Environment {
			delete(s.refreshTokens, k)
		}
	}
	return nil
}

// GetAccessToken looks up a cached access token by its full cache key.
func (s *Store) GetAccessToken(_ context.Context, key string) (core.AccessTokenEntity, bool, error) {
	if s == nil {
		return core.AccessTokenEntity{}, false, fmt.Errorf("memory: store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.accessTokens[strings.TrimSpace(key)]
	return entity, ok, nil
}

// GetRefreshToken looks up a cached refresh token by its full cache key.
func (s *Store) GetRefreshToken(_ context.Context, key string) (core.RefreshTokenEntity, bool, error) {
	if s == nil {
		return core.RefreshTokenEntity{}, false, fmt.Errorf("memory: store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.refreshTokens[strings.TrimSpace(key)]
	return entity, ok, nil
}

// Accounts returns a snapshot of every cached account.
func (s *Store) Accounts(_ context.Context) ([]core.AccountEntity, error) {
	if s == nil {
		return nil, fmt.Errorf("memory: store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.AccountEntity, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	return out, nil
}

var _ core.CacheStore = (*Store)(nil)
