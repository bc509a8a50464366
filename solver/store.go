package solver

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/demaxmin/cache"
	"github.com/wyfcoding/demaxmin/xerrors"
)

const sessionKeyPrefix = "session:"

// SessionStore 在缓存中保存问题会话。
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore 创建会话存储，ttl 为会话的最长保留时间。
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

// Save 写入或覆盖会话。
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	if err := s.cache.Set(ctx, sessionKeyPrefix+sess.ID, sess, s.ttl); err != nil {
		return xerrors.ErrDependencyUnavailable.WithContext("session_id", sess.ID).WithCause(err)
	}
	return nil
}

// Load 读取会话，不存在或已过期时返回 ErrSessionNotFound。
func (s *SessionStore) Load(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.cache.Get(ctx, sessionKeyPrefix+id, &sess); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, xerrors.ErrSessionNotFound.WithContext("session_id", id)
		}
		return nil, xerrors.ErrDependencyUnavailable.WithContext("session_id", id).WithCause(err)
	}
	return &sess, nil
}

// Delete 删除会话，会话不存在时返回 ErrSessionNotFound。
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	key := sessionKeyPrefix + id
	ok, err := s.cache.Exists(ctx, key)
	if err != nil {
		return xerrors.ErrDependencyUnavailable.WithContext("session_id", id).WithCause(err)
	}
	if !ok {
		return xerrors.ErrSessionNotFound.WithContext("session_id", id)
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return xerrors.ErrDependencyUnavailable.WithContext("session_id", id).WithCause(err)
	}
	return nil
}
