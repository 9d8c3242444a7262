package exclusion

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// only delete the key if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis extends the registry across processes. The TTL bounds how long a
// crashed holder can block the name.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "exclusion")),
	}
}

func (r *Redis) RunExclusive(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	key := r.prefix + name
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(model.ErrLockUnavailable, "failed acquiring lock %s: %s", key, err)
	}
	if !ok {
		return false, nil
	}
	defer func() {
		if err := r.release(key, token); err != nil {
			r.logger.Error("lock stays held until it expires", zap.String("key", key),
				zap.Duration("ttl", r.ttl), zap.Error(err))
		}
	}()
	return true, task(ctx)
}

// release runs even if the task's ctx is already cancelled.
func (r *Redis) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return errors.Wrapf(err, "failed releasing lock %s", key)
	}
	return nil
}
