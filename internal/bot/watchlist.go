package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Watchlist keeps each Telegram user's watched symbols in insertion order.
type Watchlist interface {
	// Add reports false when the symbol was already watched.
	Add(ctx context.Context, userID int64, symbol string) (bool, error)
	List(ctx context.Context, userID int64) ([]string, error)
	// Remove reports false when the symbol was not watched.
	Remove(ctx context.Context, userID int64, symbol string) (bool, error)
}

type MemoryWatchlist struct {
	mu      sync.Mutex
	symbols map[int64][]string
}

func NewMemoryWatchlist() *MemoryWatchlist {
	return &MemoryWatchlist{symbols: make(map[int64][]string)}
}

func (w *MemoryWatchlist) Add(_ context.Context, userID int64, symbol string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Contains(w.symbols[userID], symbol) {
		return false, nil
	}
	w.symbols[userID] = append(w.symbols[userID], symbol)
	return true, nil
}

func (w *MemoryWatchlist) List(_ context.Context, userID int64) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.symbols[userID]), nil
}

func (w *MemoryWatchlist) Remove(_ context.Context, userID int64, symbol string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := w.symbols[userID]
	index := slices.Index(current, symbol)
	if index < 0 {
		return false, nil
	}
	w.symbols[userID] = slices.Delete(current, index, index+1)
	return true, nil
}

// RedisWatchlist stores one sorted set per user, scored by the time the
// symbol was added, so watchlists survive restarts.
type RedisWatchlist struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisWatchlist(client *redis.Client) *RedisWatchlist {
	return &RedisWatchlist{client: client, prefix: "traderadar:watchlist:", now: time.Now}
}

func (w *RedisWatchlist) key(userID int64) string {
	return w.prefix + strconv.FormatInt(userID, 10)
}

func (w *RedisWatchlist) Add(ctx context.Context, userID int64, symbol string) (bool, error) {
	added, err := w.client.ZAddNX(ctx, w.key(userID), redis.Z{
		Score:  float64(w.now().UnixMicro()),
		Member: symbol,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("watchlist add %s: %w", symbol, err)
	}
	return added > 0, nil
}

func (w *RedisWatchlist) List(ctx context.Context, userID int64) ([]string, error) {
	symbols, err := w.client.ZRange(ctx, w.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("watchlist list: %w", err)
	}
	return symbols, nil
}

func (w *RedisWatchlist) Remove(ctx context.Context, userID int64, symbol string) (bool, error) {
	removed, err := w.client.ZRem(ctx, w.key(userID), symbol).Result()
	if err != nil {
		return false, fmt.Errorf("watchlist remove %s: %w", symbol, err)
	}
	return removed > 0, nil
}
