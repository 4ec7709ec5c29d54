// file: repository/cached_user_repository.go

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smad-api/logger"
	"smad-api/model"

	"github.com/redis/go-redis/v9"
)

// ICacheClient defines the contract for a cache client.
// *redis.Client satisfies it.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// cachedUser mirrors model.User with the password hash but without the refresh
// token. A lookup racing a login can write a stale snapshot back after the
// invalidation, so the token is only ever read from the underlying store.
type cachedUser struct {
	ID       int64          `json:"id"`
	Login    string         `json:"login"`
	Password string         `json:"password"`
	Roles    []string       `json:"roles"`
	Settings model.Settings `json:"settings"`
}

func toCached(u *model.User) cachedUser {
	return cachedUser{ID: u.ID, Login: u.Login, Password: u.Password, Roles: u.Roles, Settings: u.Settings}
}

func (c cachedUser) user() *model.User {
	return &model.User{ID: c.ID, Login: c.Login, Password: c.Password, Roles: c.Roles, Settings: c.Settings}
}

func loginKey(login string) string { return "users:login:" + login }
func idKey(id int64) string        { return fmt.Sprintf("users:id:%d", id) }

// CachedUserRepository is a cache-aside decorator over another IUserRepository.
// Lookups are served from Redis when possible; every write invalidates the
// entries of the user it touches. Cache failures never fail a request.
// Users served from the cache carry no RefreshToken; use GetRefreshToken.
type CachedUserRepository struct {
	next  IUserRepository
	cache ICacheClient
	ttl   time.Duration
}

func NewCachedUserRepository(next IUserRepository, cache ICacheClient, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{next: next, cache: cache, ttl: ttl}
}

func (r *CachedUserRepository) lookup(ctx context.Context, key string) (*model.User, bool) {
	raw, err := r.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		return nil, false
	}
	return cu.user(), true
}

func (r *CachedUserRepository) store(ctx context.Context, user *model.User) {
	data, err := json.Marshal(toCached(user))
	if err != nil {
		return
	}
	for _, key := range []string{loginKey(user.Login), idKey(user.ID)} {
		if err := r.cache.Set(ctx, key, data, r.ttl).Err(); err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
}

// keysOf returns the cache keys of a stored user. The login is taken from the
// id entry when cached, otherwise from the underlying store, so a login entry
// never outlives a write to its user.
func (r *CachedUserRepository) keysOf(ctx context.Context, id int64) []string {
	keys := []string{idKey(id)}
	if cached, ok := r.lookup(ctx, idKey(id)); ok {
		return append(keys, loginKey(cached.Login))
	}
	if current, err := r.next.GetUserByID(ctx, id); err == nil {
		keys = append(keys, loginKey(current.Login))
	}
	return keys
}

func (r *CachedUserRepository) invalidate(ctx context.Context, keys []string) {
	if err := r.cache.Del(ctx, keys...).Err(); err != nil {
		logger.Log.WithError(err).WithField("keys", keys).Warn("Cache invalidation failed")
	}
}

func (r *CachedUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.next.CreateUser(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, []string{idKey(user.ID), loginKey(user.Login)})
	return nil
}

func (r *CachedUserRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	if user, ok := r.lookup(ctx, loginKey(login)); ok {
		return user, nil
	}
	user, err := r.next.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *CachedUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if user, ok := r.lookup(ctx, idKey(id)); ok {
		return user, nil
	}
	user, err := r.next.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

// GetAllUsers is never cached.
func (r *CachedUserRepository) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	return r.next.GetAllUsers(ctx)
}

func (r *CachedUserRepository) UpdateUser(ctx context.Context, user *model.User) error {
	keys := append(r.keysOf(ctx, user.ID), loginKey(user.Login))
	err := r.next.UpdateUser(ctx, user)
	r.invalidate(ctx, keys)
	return err
}

func (r *CachedUserRepository) UpdateRefreshToken(ctx context.Context, id int64, refreshToken string) error {
	keys := r.keysOf(ctx, id)
	err := r.next.UpdateRefreshToken(ctx, id, refreshToken)
	r.invalidate(ctx, keys)
	return err
}

// GetRefreshToken always reads through to the underlying store.
func (r *CachedUserRepository) GetRefreshToken(ctx context.Context, id int64) (string, error) {
	return r.next.GetRefreshToken(ctx, id)
}

func (r *CachedUserRepository) DeleteUser(ctx context.Context, id int64) error {
	keys := r.keysOf(ctx, id)
	err := r.next.DeleteUser(ctx, id)
	r.invalidate(ctx, keys)
	return err
}
