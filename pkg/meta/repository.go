package meta

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrRepoExists   = errors.New("repository already exists")
	ErrRepoNotFound = errors.New("repository not found")
)

// Repository 封装所有对注册表数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create 持久化一条 仓库名 -> 合约地址 映射。
// 主键冲突返回 ErrRepoExists，绝不覆盖已有地址 ——
// 覆盖等于把整个仓库的历史丢给另一个合约。
func (r *Repository) Create(ctx context.Context, name, address string) error {
	model := RepoModel{Name: name, Address: address}
	err := r.db.conn.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRepoExists
	}
	if err != nil {
		return fmt.Errorf("failed to persist repo %s: %w", name, err)
	}
	return nil
}

// Get 按名字取一条映射
func (r *Repository) Get(ctx context.Context, name string) (*RepoModel, error) {
	var model RepoModel
	err := r.db.conn.WithContext(ctx).First(&model, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load repo %s: %w", name, err)
	}
	return &model, nil
}

// List 返回全部映射，启动时重建内存注册表用
func (r *Repository) List(ctx context.Context) ([]RepoModel, error) {
	var models []RepoModel
	if err := r.db.conn.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	return models, nil
}
