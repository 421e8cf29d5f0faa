package intraday

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore is the shared mutable resource behind the cache.
// Put은 키 단위로 원자적이어야 함: 읽는 쪽이 절반만 쓰인 스냅샷을 보면 안 됨
type SnapshotStore interface {
	// Get returns the stored snapshot for (symbol, date), or found=false.
	Get(ctx context.Context, symbol string, date time.Time) (*Snapshot, bool, error)

	// Put replaces the entry for the snapshot's key.
	Put(ctx context.Context, snap *Snapshot) error
}

// RedisStore keeps snapshots in Redis under {namespace}:{SYMBOL}:{YYYY-MM-DD}.
// ⭐ SSOT: 스냅샷 직렬화 포맷은 여기서만 결정
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed snapshot store.
// ttl is the store-side expiry; entries for past trading dates fall out on
// their own once the key is no longer addressed after day rollover.
func NewRedisStore(rdb *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "intraday"
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisStore{
		rdb:       rdb,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Get retrieves and deserializes a snapshot.
func (s *RedisStore) Get(ctx context.Context, symbol string, date time.Time) (*Snapshot, bool, error) {
	b, err := s.rdb.Get(ctx, s.storeKey(symbol, date)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		// Corrupted entry: drop it and report a miss
		_ = s.rdb.Del(ctx, s.storeKey(symbol, date)).Err()
		return nil, false, nil
	}

	return &snap, true, nil
}

// Put serializes and stores a snapshot. A single SET keeps the write atomic
// per key.
func (s *RedisStore) Put(ctx context.Context, snap *Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot marshal failed: %w", err)
	}

	if err := s.rdb.Set(ctx, s.storeKey(snap.Symbol, snap.TradingDate), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// storeKey builds the namespaced Redis key.
func (s *RedisStore) storeKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s:%s:%s", s.namespace, strings.ToUpper(symbol), date.Format("2006-01-02"))
}

// MemoryStore is an in-process SnapshotStore for tests and Redis-less
// deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string]*Snapshot),
	}
}

// Get returns the stored snapshot, if any.
func (s *MemoryStore) Get(ctx context.Context, symbol string, date time.Time) (*Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[Key(strings.ToUpper(symbol), date)]
	if !ok {
		return nil, false, nil
	}
	return snap, true, nil
}

// Put replaces the entry under the snapshot's key. Snapshots are immutable
// once built, so storing the pointer is safe.
func (s *MemoryStore) Put(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[Key(strings.ToUpper(snap.Symbol), snap.TradingDate)] = snap
	return nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snaps)
}
