package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// CacheStorage implements the cross-job enrichment cache on Badger. Badger
// transactions give per-key atomicity, so concurrent insert-or-replace of the
// same key needs no store-wide lock; the last writer wins.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeKey lowercases and trims the lookup key so cosmetically different
// URLs hit the same entry.
func (s *CacheStorage) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves an unexpired entry. Expired entries are reported as misses;
// the purge cron reclaims them later.
func (s *CacheStorage) Get(ctx context.Context, key string) (*interfaces.CacheEntry, error) {
	normalized := s.normalizeKey(key)
	var entry interfaces.CacheEntry
	err := s.db.Store().Get(normalized, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if entry.Expired(time.Now()) {
		return nil, interfaces.ErrCacheMiss
	}
	return &entry, nil
}

// Set inserts or replaces an entry with the given lifetime.
func (s *CacheStorage) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	normalized := s.normalizeKey(key)
	now := time.Now()

	entry := interfaces.CacheEntry{
		Key:       normalized,
		Payload:   payload,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.db.Store().Upsert(normalized, &entry); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes every entry past its expiry and returns the count.
func (s *CacheStorage) PurgeExpired(ctx context.Context) (int, error) {
	now := time.Now()

	var expired []*interfaces.CacheEntry
	query := badgerhold.Where("ExpiresAt").Lt(now)
	if err := s.db.Store().Find(&expired, query); err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&interfaces.CacheEntry{}, query); err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}

	s.logger.Debug().Int("purged", len(expired)).Msg("Expired cache entries purged")
	return len(expired), nil
}
