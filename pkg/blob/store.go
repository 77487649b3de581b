// pkg/blob/store.go
package blob

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("content not found")

	// ErrUploadFailed / ErrDownloadFailed: 重试次数耗尽
	ErrUploadFailed   = errors.New("blob upload failed")
	ErrDownloadFailed = errors.New("blob download failed")
)

// Store 定义了 Blob 网络的存储接口。
// 实现可以是 IPFS、S3 或本地磁盘。
type Store interface {
	// Upload 把 payload 逐字节原样上传，返回 content id (账本里的 locator)。
	// 注意: payload 可能是原始 Git 对象 (zlib 压缩的二进制)，
	// 任何重新编码/重新压缩都会破坏它。
	Upload(ctx context.Context, content []byte) (string, error)

	// Download 把 locator 指向的内容写到 destPath，按需创建父目录
	Download(ctx context.Context, locator string, destPath string) error
}
