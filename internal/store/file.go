package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
)

const collectionFilename = "mailboxes.json"

// FilePersistence 把邮箱集合作为单个 JSON 文件保存在数据目录下。
type FilePersistence struct {
	basePath string
	log      *zap.Logger
}

// NewFilePersistence 创建文件持久化后端，确保数据目录存在。
func NewFilePersistence(basePath string, log *zap.Logger) (*FilePersistence, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FilePersistence{
		basePath: basePath,
		log:      log,
	}, nil
}

// Load 读取持久化的集合。
// 文件缺失、JSON 损坏、版本不符都返回 (nil, nil)：这些情况等同于空集合。
func (p *FilePersistence) Load(ctx context.Context) (*domain.MailboxCollection, error) {
	data, err := os.ReadFile(p.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read mailbox collection: %w", err)
	}

	var collection domain.MailboxCollection
	if err := json.Unmarshal(data, &collection); err != nil {
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

// Save 原子写入集合：先写临时文件再重命名，避免写一半留下损坏文件。
func (p *FilePersistence) Save(ctx context.Context, collection *domain.MailboxCollection) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mailbox collection: %w", err)
	}

	target := p.filePath()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write mailbox collection: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace mailbox collection: %w", err)
	}

	return nil
}

// Clear 删除持久化文件。文件不存在视为成功。
func (p *FilePersistence) Clear(ctx context.Context) error {
	if err := os.Remove(p.filePath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Health 检查数据目录是否仍然可用。
func (p *FilePersistence) Health() error {
	info, err := os.Stat(p.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", p.basePath)
	}
	return nil
}

func (p *FilePersistence) filePath() string {
	return filepath.Join(p.basePath, collectionFilename)
}
