package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"civ-server/internal/shared/errors"
)

// Locker serializes turn processing per game: at most one end-turn request
// advances a game at a time. With Redis available the lock is a keyed lease
// shared across instances; without it a process-local table covers the
// single-instance case.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	local map[int]localLease
}

type localLease struct {
	token   string
	expires time.Time
}

// NewLocker accepts a nil client, in which case locks are process-local.
func NewLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		logger: logger,
		local:  make(map[int]localLease),
	}
}

func lockKey(gameID int) string {
	return fmt.Sprintf("turn_lock:%d", gameID)
}

// Acquire takes the turn lock for a game and returns the lease token needed
// to release it. A held lock is a Conflict: the caller should retry after the
// in-flight turn finishes.
func (l *Locker) Acquire(ctx context.Context, gameID int) (string, error) {
	token := uuid.NewString()

	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()

		lease, held := l.local[gameID]
		if held && time.Now().Before(lease.expires) {
			return "", errors.Conflictf("turn is already being processed for game %d", gameID)
		}
		l.local[gameID] = localLease{token: token, expires: time.Now().Add(l.ttl)}
		return token, nil
	}

	acquired, err := l.client.SetNX(ctx, lockKey(gameID), token, l.ttl).Result()
	if err != nil {
		l.logger.Error("Failed to acquire turn lock", "component", "turn_locker", "game_id", gameID, "error", err)
		return "", errors.WrapExternal("failed to acquire turn lock", err)
	}
	if !acquired {
		return "", errors.Conflictf("turn is already being processed for game %d", gameID)
	}

	return token, nil
}

// Release drops the lock when the caller still holds it. A mismatched token
// means the lease expired and someone else took over; that release is a
// no-op, not an error.
func (l *Locker) Release(ctx context.Context, gameID int, token string) {
	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()

		if lease, held := l.local[gameID]; held && lease.token == token {
			delete(l.local, gameID)
		}
		return
	}

	key := lockKey(gameID)
	current, err := l.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			l.logger.Warn("Failed to read turn lock on release", "component", "turn_locker", "game_id", gameID, "error", err)
		}
		return
	}
	if current != token {
		return
	}
	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.logger.Warn("Failed to release turn lock", "component", "turn_locker", "game_id", gameID, "error", err)
	}
}
