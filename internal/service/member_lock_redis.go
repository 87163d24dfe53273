package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Solo borra la llave si el token sigue siendo el nuestro.
const redisUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisMemberLocker es un lease SET NX PX compartido entre procesos.
type redisMemberLocker struct {
	client redisLockClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedisMemberLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) MemberLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisMemberLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "member:lock:",
		logger: logger,
	}
}

func (l *redisMemberLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	// Esperar mas que el lease no tiene sentido: el dueño ya expiró.
	waitCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("acquire member lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.release(redisKey, token) })
			}, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-time.After(l.retry):
		}
	}
}

func (l *redisMemberLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := l.client.Eval(ctx, redisUnlockScript, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("release member lock", zap.String("key", redisKey), zap.Error(err))
	}
}
