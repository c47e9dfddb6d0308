package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Names of the per-session references kept next to the cart.
const (
	RefCurrentOrderID     = "currentOrderId"
	RefPendingOrderID     = "pendingOrderId"
	RefPurchasedCourseIDs = "purchasedCourseIds"
)

// CartStore is the durable key-value cache behind a cart session. It is a
// best-effort cache; the orders table stays the source of truth.
type CartStore interface {
	SaveCart(ctx context.Context, sessionID string, state CartState) error
	LoadCart(ctx context.Context, sessionID string) (state CartState, ok bool, err error)
	SetRef(ctx context.Context, sessionID, name, value string) error
	GetRef(ctx context.Context, sessionID, name string) (value string, ok bool, err error)
	DeleteRef(ctx context.Context, sessionID, name string) error
}

// MemoryCartStore keeps carts in process memory. Used when Redis is not configured and in tests.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
	refs  map[string]map[string]string
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: map[string][]byte{}, refs: map[string]map[string]string{}}
}

func (m *MemoryCartStore) SaveCart(_ context.Context, sessionID string, state CartState) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.carts[sessionID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryCartStore) LoadCart(_ context.Context, sessionID string) (CartState, bool, error) {
	m.mu.RLock()
	raw, ok := m.carts[sessionID]
	m.mu.RUnlock()
	if !ok {
		return CartState{}, false, nil
	}
	var state CartState
	if err := sonic.Unmarshal(raw, &state); err != nil {
		return CartState{}, false, err
	}
	return state, true, nil
}

func (m *MemoryCartStore) SetRef(_ context.Context, sessionID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[sessionID] == nil {
		m.refs[sessionID] = map[string]string{}
	}
	m.refs[sessionID][name] = value
	return nil
}

func (m *MemoryCartStore) GetRef(_ context.Context, sessionID, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.refs[sessionID][name]
	return v, ok, nil
}

func (m *MemoryCartStore) DeleteRef(_ context.Context, sessionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs[sessionID], name)
	return nil
}

// RedisCartStore keeps the serialized cart under cart:<session> and the refs in
// the hash cart:<session>:refs. Both expire after ttl of inactivity.
type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewRedisCartStore(rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *RedisCartStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisCartStore{rdb: rdb, ttl: ttl, log: log.With("service", "RedisCartStore")}
}

// DialRedis connects and pings, closing the client when the ping fails.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func cartKey(sessionID string) string { return "cart:" + sessionID }
func refsKey(sessionID string) string { return "cart:" + sessionID + ":refs" }

func (r *RedisCartStore) SaveCart(ctx context.Context, sessionID string, state CartState) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cartKey(sessionID), raw, r.ttl)
		pipe.Expire(ctx, refsKey(sessionID), r.ttl)
		return nil
	})
	return err
}

func (r *RedisCartStore) LoadCart(ctx context.Context, sessionID string) (CartState, bool, error) {
	raw, err := r.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CartState{}, false, nil
	}
	if err != nil {
		return CartState{}, false, err
	}
	var state CartState
	if err := sonic.Unmarshal(raw, &state); err != nil {
		r.log.Warnw("discarding unreadable cart", "session", sessionID, "error", err)
		return CartState{}, false, nil
	}
	return state, true, nil
}

func (r *RedisCartStore) SetRef(ctx context.Context, sessionID, name, value string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, refsKey(sessionID), name, value)
		pipe.Expire(ctx, refsKey(sessionID), r.ttl)
		return nil
	})
	return err
}

func (r *RedisCartStore) GetRef(ctx context.Context, sessionID, name string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, refsKey(sessionID), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCartStore) DeleteRef(ctx context.Context, sessionID, name string) error {
	return r.rdb.HDel(ctx, refsKey(sessionID), name).Err()
}
