package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

var errTestWrite = errors.New("store: write rejected")

type memoryCacheStore struct {
	mu       sync.Mutex
	accounts map[string]AccountEntity
	records  []CacheRecord
	saveErr  error
	getErr   error
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{accounts: map[string]AccountEntity{}}
}

func (s *memoryCacheStore) GetAccount(_ context.Context, key string) (AccountEntity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return AccountEntity{}, false, s.getErr
	}
	account, ok := s.accounts[strings.TrimSpace(key)]
	return account, ok, nil
}

func (s *memoryCacheStore) SaveCacheRecord(_ context.Context, record CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if record.Account != nil {
		s.accounts[record.Account.Key()] = *record.Account
	}
	s.records = append(s.records, record)
	return nil
}

func (s *memoryCacheStore) seedAccount(account AccountEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Key()] = account
}

func (s *memoryCacheStore) savedRecords() []CacheRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CacheRecord(nil), s.records...)
}

type recordingCachePlugin struct {
	mu        sync.Mutex
	calls     []string
	beforeErr error
	afterErr  error
	lastCtx   *CacheAccessContext
}

func (p *recordingCachePlugin) BeforeCacheAccess(_ context.Context, access *CacheAccessContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "before")
	p.lastCtx = access
	return p.beforeErr
}

func (p *recordingCachePlugin) AfterCacheAccess(_ context.Context, access *CacheAccessContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "after")
	p.lastCtx = access
	return p.afterErr
}

func (p *recordingCachePlugin) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type stubTokenParser struct {
	claims IDTokenClaims
	err    error
}

func (p stubTokenParser) ParseIDToken(context.Context, string) (IDTokenClaims, error) {
	if p.err != nil {
		return IDTokenClaims{}, p.err
	}
	return p.claims, nil
}

type stubPoPSigner struct {
	signed string
	err    error
	last   PoPSignRequest
}

func (s *stubPoPSigner) SignPoP(_ context.Context, req PoPSignRequest) (string, error) {
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	if s.signed != "" {
		return s.signed, nil
	}
	return fmt.Sprintf("pop(%s %s nonce=%s)", req.Method, req.URI, req.Nonce), nil
}

type capturingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	tags     map[string]map[string]string
}

func newCapturingMetrics() *capturingMetrics {
	return &capturingMetrics{
		counters: map[string]int64{},
		tags:     map[string]map[string]string{},
	}
}

func (m *capturingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	m.tags[name] = tags
}

func (m *capturingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func encodeClientInfo(t *testing.T, info ClientInfo) string {
	t.Helper()
	raw, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal client info: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func fixedClock(epoch int64) func() time.Time {
	return func() time.Time {
		return time.Unix(epoch, 0).UTC()
	}
}

func testAuthority() Authority {
	return Authority{
		Type:   AuthorityTypeAAD,
		Tenant: "common",
		Host:   "login.microsoftonline.com",
	}
}

func newTestHandler(t *testing.T, store CacheStore, options ...Option) *ResponseHandler {
	t.Helper()
	base := []Option{
		WithCacheStore(store),
		WithClock(fixedClock(1_700_000_000)),
	}
	handler, err := NewResponseHandler(Config{ClientID: "client-1"}, append(base, options...)...)
	if err != nil {
		t.Fatalf("NewResponseHandler returned error: %v", err)
	}
	return handler
}
