package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nexusmail/agent/internal/config"
	"nexusmail/agent/internal/domain"
)

// collectionKey 集合在 Redis 中的存储键，版本号编入键名。
const collectionKey = "nexusmail:mailboxes:v2"

// RedisPersistence 把邮箱集合作为单个带版本的 JSON 载荷存入 Redis。
// 适用于把代理跑在容器里、本地文件系统不可靠的场景。
type RedisPersistence struct {
	rdb *goredis.Client
	log *zap.Logger
}

// NewRedisPersistence 创建 Redis 持久化后端并验证连接。
func NewRedisPersistence(cfg *config.RedisConfig, log *zap.Logger) (*RedisPersistence, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("connected to redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &RedisPersistence{rdb: rdb, log: log}, nil
}

// Load 读取持久化的集合。键缺失或载荷损坏返回 (nil, nil)，等同于空集合。
func (p *RedisPersistence) Load(ctx context.Context) (*domain.MailboxCollection, error) {
	data, err := p.rdb.Get(ctx, collectionKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read mailbox collection: %w", err)
	}

	var collection domain.MailboxCollection
	if err := json.Unmarshal([]byte(data), &collection); err != nil {
		p.log.Warn("persisted mailbox collection is malformed, treating as empty", zap.Error(err))
		return nil, nil
	}
	if collection.Version != domain.CollectionVersion {
		p.log.Warn("persisted mailbox collection has unknown version, treating as empty",
			zap.Int("version", collection.Version),
		)
		return nil, nil
	}

	return &collection, nil
}

// Save 整体写入集合，不设过期时间：一次性邮箱的生命周期由用户控制。
func (p *RedisPersistence) Save(ctx context.Context, collection *domain.MailboxCollection) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("failed to marshal mailbox collection: %w", err)
	}
	return p.rdb.Set(ctx, collectionKey, data, 0).Err()
}

// Clear 删除集合键。
func (p *RedisPersistence) Clear(ctx context.Context) error {
	return p.rdb.Del(ctx, collectionKey).Err()
}

// Health 检查 Redis 连接。
func (p *RedisPersistence) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (p *RedisPersistence) Close() error {
	return p.rdb.Close()
}
