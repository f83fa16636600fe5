package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/LJTian/TrendingNews/internal/processor"
	"github.com/redis/go-redis/v9"
)

const (
	// currentArticlesKey 为 newsId -> 文章 JSON 的 hash，只保存最近一轮成功运行的结果
	currentArticlesKey = "current_articles"
	// currentOrderKey 记录本轮的写入顺序
	currentOrderKey = "current_articles:order"

	defaultTopLimit = 10
)

var ErrNotFound = errors.New("article not found")

// SortBy 热门列表的排序方式
type SortBy string

const (
	SortRecent SortBy = "recent"
	SortRank   SortBy = "rank"
)

// ParseSort 空字符串视为 SortRecent
func ParseSort(s string) (SortBy, bool) {
	switch SortBy(s) {
	case "", SortRecent:
		return SortRecent, true
	case SortRank:
		return SortRank, true
	default:
		return "", false
	}
}

// ArticleStore 基于 Redis 保存当前文章集合。每次写入整体替换，读者只会看到完整的新集合或旧集合
type ArticleStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewArticleStore ttl <= 0 表示不过期
func NewArticleStore(rdb *redis.Client, ttl time.Duration) *ArticleStore {
	return &ArticleStore{rdb: rdb, ttl: ttl, now: time.Now}
}

// ReplaceAll 在一个 MULTI/EXEC 事务中删除旧集合并写入新集合，所有文章共享同一个 stored_at。
// newsId 相同的文章只保留第一篇，返回实际写入的条数
func (s *ArticleStore) ReplaceAll(ctx context.Context, articles []processor.Article) (int, error) {
	storedAt := s.now().UTC()

	fields := make(map[string]any, len(articles))
	order := make([]any, 0, len(articles))
	for _, a := range articles {
		if _, dup := fields[a.NewsID]; dup {
			continue
		}
		a.Title = toValidUTF8(a.Title)
		a.Description = toValidUTF8(a.Description)
		a.StoredAt = storedAt
		bs, err := json.Marshal(a)
		if err != nil {
			return 0, fmt.Errorf("encode article %s: %w", a.NewsID, err)
		}
		fields[a.NewsID] = bs
		order = append(order, a.NewsID)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, currentArticlesKey, currentOrderKey)
		if len(order) == 0 {
			return nil
		}
		pipe.HSet(ctx, currentArticlesKey, fields)
		pipe.RPush(ctx, currentOrderKey, order...)
		if s.ttl > 0 {
			pipe.Expire(ctx, currentArticlesKey, s.ttl)
			pipe.Expire(ctx, currentOrderKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace articles: %w", err)
	}
	return len(order), nil
}

// Latest 按写入顺序返回当前集合
func (s *ArticleStore) Latest(ctx context.Context) ([]processor.Article, error) {
	var (
		orderCmd *redis.StringSliceCmd
		hashCmd  *redis.MapStringStringCmd
	)
	// 两次读取放在同一个事务里，避免读到一半被替换
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		orderCmd = pipe.LRange(ctx, currentOrderKey, 0, -1)
		hashCmd = pipe.HGetAll(ctx, currentArticlesKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read articles: %w", err)
	}

	hash := hashCmd.Val()
	out := make([]processor.Article, 0, len(hash))
	for _, id := range orderCmd.Val() {
		raw, ok := hash[id]
		if !ok {
			continue
		}
		var a processor.Article
		// 损坏的条目直接跳过
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ByID 未找到时返回 ErrNotFound
func (s *ArticleStore) ByID(ctx context.Context, newsID string) (*processor.Article, error) {
	raw, err := s.rdb.HGet(ctx, currentArticlesKey, newsID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read article %s: %w", newsID, err)
	}
	var a processor.Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode article %s: %w", newsID, err)
	}
	return &a, nil
}

// BySource 返回指定来源的文章，保持写入顺序
func (s *ArticleStore) BySource(ctx context.Context, source string) ([]processor.Article, error) {
	all, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]processor.Article, 0, len(all))
	for _, a := range all {
		if a.Source == source {
			out = append(out, a)
		}
	}
	return out, nil
}

// Top 返回前 limit 篇。SortRecent 按 stored_at、fetched_at 倒序，SortRank 按热搜排名升序；
// 相同键保持写入顺序
func (s *ArticleStore) Top(ctx context.Context, limit int, by SortBy) ([]processor.Article, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	all, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	switch by {
	case SortRank:
		sort.SliceStable(all, func(i, j int) bool { return all[i].Rank < all[j].Rank })
	default:
		sort.SliceStable(all, func(i, j int) bool {
			if !all[i].StoredAt.Equal(all[j].StoredAt) {
				return all[i].StoredAt.After(all[j].StoredAt)
			}
			return all[i].FetchedAt.After(all[j].FetchedAt)
		})
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Sources 返回当前集合中出现过的来源，按名称排序
func (s *ArticleStore) Sources(ctx context.Context) ([]string, error) {
	all, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, a := range all {
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		names = append(names, a.Source)
	}
	sort.Strings(names)
	return names, nil
}
