// pkg/blob/disk/adapter.go
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"chaingit/pkg/blob"
)

// Adapter 实现了 blob.Store 接口。
// 本地磁盘后端，开发/单机部署用: 不需要 IPFS 节点也能跑通整条推拉链路。
type Adapter struct {
	rootPath string
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回 locator 对应的物理路径
// 策略: 使用前 2 个字符作为子目录 (Sharding)
func (s *Adapter) layout(locator string) string {
	if len(locator) < 2 {
		return filepath.Join(s.rootPath, locator)
	}
	return filepath.Join(s.rootPath, locator[:2], locator[2:])
}

// Upload 按内容摘要落盘，返回摘要作为 locator
func (s *Adapter) Upload(ctx context.Context, content []byte) (string, error) {
	sum := sha256.Sum256(content)
	locator := hex.EncodeToString(sum[:])
	targetPath := s.layout(locator)

	// 已存在直接跳过 (CAS 的好处)
	if _, err := os.Stat(targetPath); err == nil {
		return locator, nil
	}

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// 原子写入: 先写临时文件再 Rename，保证要么没有要么完整
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		return "", err
	}
	tempFile.Close()

	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return "", err
	}
	return locator, nil
}

// Download 把 locator 指向的内容复制到 destPath
func (s *Adapter) Download(ctx context.Context, locator string, destPath string) error {
	content, err := os.ReadFile(s.layout(locator))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, locator)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", blob.ErrDownloadFailed, locator, err)
	}

	if parent := filepath.Dir(destPath); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	return os.WriteFile(destPath, content, 0644)
}
