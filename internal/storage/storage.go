package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// NewRedisClient 创建 Redis 客户端并做一次连通性检查。
// ping 失败时仍返回可用的客户端，由调用方决定是否继续启动
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return rdb, err
	}
	return rdb, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，部分站点的 feed 会混入非法字节
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunes 按 rune 数截断，确保不会超过数据库字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
