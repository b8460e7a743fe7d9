package diplomacy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"civ-server/internal/shared/errors"
)

// Store persists diplomacy sessions. Get returns nil for a session that does
// not exist.
type Store interface {
	Get(ctx context.Context, gameID, playerID, civilizationID int) (*Session, error)
	Save(ctx context.Context, session *Session) error
	List(ctx context.Context, gameID int) ([]Session, error)
}

func sessionKey(gameID, playerID, civilizationID int) string {
	return fmt.Sprintf("diplomacy:%d:%d:%d", gameID, playerID, civilizationID)
}

// MemoryStore keeps sessions in process memory. Owned by whoever constructs
// it; there is no package-level instance.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(_ context.Context, gameID, playerID, civilizationID int) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionKey(gameID, playerID, civilizationID)]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[sessionKey(session.GameID, session.PlayerID, session.CivilizationID)] = &copied
	return nil
}

func (s *MemoryStore) List(_ context.Context, gameID int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []Session
	for _, session := range s.sessions {
		if session.GameID == gameID {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

// RedisStore persists sessions as JSON values, one key per session, so
// sessions survive restarts and are shared across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, gameID, playerID, civilizationID int) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(gameID, playerID, civilizationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.WrapExternal("failed to read diplomacy session", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.WrapInternal("failed to decode diplomacy session", err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.WrapInternal("failed to encode diplomacy session", err)
	}

	key := sessionKey(session.GameID, session.PlayerID, session.CivilizationID)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.WrapExternal("failed to save diplomacy session", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, gameID int) ([]Session, error) {
	pattern := fmt.Sprintf("diplomacy:%d:*", gameID)

	var sessions []Session
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, errors.WrapExternal("failed to read diplomacy session", err)
		}
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, errors.WrapInternal("failed to decode diplomacy session", err)
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.WrapExternal("failed to scan diplomacy sessions", err)
	}
	return sessions, nil
}
