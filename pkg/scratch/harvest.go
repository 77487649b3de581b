// pkg/scratch/harvest.go
package scratch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"chaingit/pkg/types"
)

// Harvest 是纯文件系统函数: 给定一棵 scratch 目录快照，
// 产出数据模型实体。这里没有任何账本/网络调用，单独可测。

// ObjectFile 是 scratch 树里的一个松散对象
type ObjectFile struct {
	Hash types.Hash
	Path string // 文件的绝对路径，上传时直接读
}

// RefFile 是 scratch 树里的一个引用文件
type RefFile struct {
	Name   string // 逻辑路径，比如 refs/heads/main
	Target types.Hash
}

// ScanObjects 遍历 objects/ 下的普通文件，按 目录名+文件名 还原对象哈希。
// objects/pack 和 objects/info 下的文件不是松散对象，直接跳过。
func ScanObjects(repoPath string) ([]ObjectFile, error) {
	objectsDir := filepath.Join(repoPath, "objects")

	var found []ObjectFile
	err := filepath.WalkDir(objectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		hash, ok := types.HashFromLoosePath(filepath.Base(filepath.Dir(path)), d.Name())
		if !ok {
			return nil
		}
		found = append(found, ObjectFile{Hash: hash, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan objects tree: %w", err)
	}
	return found, nil
}

// ScanRefs 遍历 refs/heads 和 refs/tags 下的文件，
// 还原每条引用的逻辑路径和指向
func ScanRefs(repoPath string) ([]RefFile, error) {
	var found []RefFile
	for _, sub := range []string{
		filepath.Join("refs", "heads"),
		filepath.Join("refs", "tags"),
	} {
		dir := filepath.Join(repoPath, sub)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(repoPath, path)
			if err != nil {
				return err
			}
			found = append(found, RefFile{
				Name:   filepath.ToSlash(rel),
				Target: types.Hash(strings.TrimSpace(string(content))),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", sub, err)
		}
	}
	return found, nil
}
