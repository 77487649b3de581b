package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chaingit/pkg/blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("hello world")

	// Upload 返回内容摘要
	locator, err := store.Upload(ctx, payload)
	require.NoError(t, err)
	// sha256("hello world")
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", locator)

	// 文件应该落在 Sharding 目录中
	_, err = os.Stat(filepath.Join(tmpDir, locator[:2], locator[2:]))
	assert.NoError(t, err)

	// 重复上传幂等
	again, err := store.Upload(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, locator, again)

	// Download 写到目标路径，按需建父目录
	dest := filepath.Join(t.TempDir(), "objects", "b9", "4d27")
	require.NoError(t, store.Download(ctx, locator, dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, content)
}

func TestDiskAdapter_DownloadMissing(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)

	err = store.Download(context.Background(), "ffffffff", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
