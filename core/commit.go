package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// commitOrchestrator sequences the persistence plugin hooks around the cache
// write and enforces the refresh-race guard. It is the only pipeline stage
// that touches the store.
type commitOrchestrator struct {
	clientID string
	store    CacheStore
	plugin   CachePlugin
}

// Commit writes the record to the cache store. A nil record pointer with a
// nil error is the deliberate no-op outcome: a silent-refresh write was
// abandoned because a concurrent caller removed the account.
//
// When a plugin is configured, BeforeCacheAccess runs before any store
// access and AfterCacheAccess runs exactly once on every exit path after it,
// including lookup failure, the race no-op, and write failure.
func (c commitOrchestrator) Commit(
	ctx context.Context,
	record CacheRecord,
	handlingRefresh bool,
) (saved *CacheRecord, err error) {
	if c.store == nil {
		return nil, goerrors.New("cache store is required", goerrors.CategoryInternal).
			WithTextCode(IdentityErrorInternal)
	}

	if c.plugin != nil {
		access := &CacheAccessContext{
			ClientID:     c.clientID,
			Operation:    CacheOperationWrite,
			PartitionKey: c.partitionKey(record),
		}
		if beforeErr := c.plugin.BeforeCacheAccess(ctx, access); beforeErr != nil {
			return nil, goerrors.Wrap(beforeErr, goerrors.CategoryExternal, "before-cache-access hook failed").
				WithTextCode(IdentityErrorStoreWrite)
		}
		defer func() {
			afterErr := c.plugin.AfterCacheAccess(ctx, access)
			if afterErr != nil && err == nil {
				saved = nil
				err = goerrors.Wrap(afterErr, goerrors.CategoryExternal, "after-cache-access hook failed").
					WithTextCode(IdentityErrorStoreWrite)
			}
		}()
	}

	// Best-effort guard for the silent-refresh race: a refreshed-token write
	// must not resurrect an account a concurrent caller removed between the
	// read that triggered the refresh and this write. The check-to-write gap
	// is accepted; the store is not transactional.
	if handlingRefresh && record.Account != nil {
		_, found, lookupErr := c.store.GetAccount(ctx, record.Account.Key())
		if lookupErr != nil {
			return nil, goerrors.Wrap(lookupErr, goerrors.CategoryExternal, "token cache account lookup failed").
				WithTextCode(IdentityErrorStoreWrite)
		}
		if !found {
			return nil, nil
		}
	}

	if writeErr := c.store.SaveCacheRecord(ctx, record); writeErr != nil {
		return nil, newStoreWriteError(writeErr)
	}

	saved = &record
	return saved, nil
}

func (c commitOrchestrator) partitionKey(record CacheRecord) string {
	if record.Account != nil {
		return record.Account.Key()
	}
	return c.clientID
}
