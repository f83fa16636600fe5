package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	runLockKey        = "current_articles:run_lock"
	defaultRunLockTTL = 30 * time.Minute
)

// 只删除自己持有的锁，避免过期后误删其它进程的锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock 基于 SET NX 的跨进程运行锁。ttl 需大于一轮运行的最长耗时，进程崩溃后锁会自动过期
type RunLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = defaultRunLockTTL
	}
	return &RunLock{rdb: rdb, key: runLockKey, ttl: ttl}
}

// Acquire 实现 pipeline.Locker
func (l *RunLock) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("set %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseLockScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		return nil
	}
	return release, true, nil
}
