// pkg/scratch/materialize.go
package scratch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"chaingit/pkg/blob"
	"chaingit/pkg/gitexec"
	"chaingit/pkg/ledger"
	"chaingit/pkg/types"
)

var (
	// ErrEmptyRepository: upload-pack 要求账本里至少有一条引用
	ErrEmptyRepository = errors.New("repository has no refs")
)

// Materializer 把账本快照物化成一次性的裸仓库。
// 每个在途请求独占一个 scratch 目录，请求结束无条件删除。
type Materializer struct {
	git   gitexec.Runner
	blobs blob.Store
}

func NewMaterializer(git gitexec.Runner, blobs blob.Store) *Materializer {
	return &Materializer{git: git, blobs: blobs}
}

// Options 控制物化的深度
type Options struct {
	// FetchObjects: 把账本里的全部对象拉回松散对象路径
	// (upload-pack / receive-pack 需要；info/refs 只要引用)
	FetchObjects bool

	// RequireRefs: 账本一条引用都没有时直接失败
	// (只有 upload-pack 这么要求；空仓库的 info/refs 是合法的)
	RequireRefs bool
}

// Repo 是物化出来的 scratch 仓库
type Repo struct {
	Path string
	// Refs 是物化进仓库的 (有效且 active 的) 引用
	Refs []types.Ref
}

// Remove 删除 scratch 目录。每条退出路径上都必须调用，
// 包括所有错误路径 —— scratch 树绝不活过请求本身。
func (r *Repo) Remove() {
	if r == nil || r.Path == "" {
		return
	}
	if err := os.RemoveAll(r.Path); err != nil {
		log.Printf("WARN: failed to remove scratch dir %s: %v", r.Path, err)
	}
}

// Materialize 从账本当前快照构建 scratch 裸仓库:
//  1. git init --bare (失败致命)
//  2. 建 refs/heads、refs/tags、objects 目录
//  3. 写入所有 active 引用，任何一条不变量被破坏就整体中止
//     (绝不把半个仓库暴露给协议处理器)
//  4. (可选) 把账本对象经由 Blob 网络拉回松散对象路径
//  5. git update-server-info (失败只记日志，smart 客户端用不到 dumb 协议)
func (m *Materializer) Materialize(ctx context.Context, led ledger.Ledger, opts Options) (*Repo, error) {
	dir, err := os.MkdirTemp("", "chaingit-scratch-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	repo := &Repo{Path: dir}

	ok := false
	defer func() {
		if !ok {
			repo.Remove()
		}
	}()

	if _, err := m.git.Run(ctx, dir, "init", "--bare"); err != nil {
		return nil, fmt.Errorf("failed to initialize scratch repo: %w", err)
	}

	for _, sub := range []string{
		filepath.Join("refs", "heads"),
		filepath.Join("refs", "tags"),
		filepath.Join("objects", "info"),
		filepath.Join("objects", "pack"),
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	refs, err := led.GetRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch refs from ledger: %w", err)
	}

	for _, ref := range refs {
		if !ref.Active {
			continue
		}
		if err := ref.Validate(); err != nil {
			return nil, err
		}

		refPath := filepath.Join(dir, filepath.FromSlash(ref.Name))
		if err := os.MkdirAll(filepath.Dir(refPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ref dir for %s: %w", ref.Name, err)
		}
		if err := os.WriteFile(refPath, []byte(ref.Target.String()+"\n"), 0644); err != nil {
			return nil, fmt.Errorf("failed to write ref %s: %w", ref.Name, err)
		}
		repo.Refs = append(repo.Refs, ref)
	}

	if opts.RequireRefs && len(repo.Refs) == 0 {
		return nil, ErrEmptyRepository
	}

	if opts.FetchObjects {
		objects, err := led.GetObjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch objects from ledger: %w", err)
		}
		for _, obj := range objects {
			dest := filepath.Join(dir, "objects", filepath.FromSlash(obj.Hash.LoosePath()))
			if err := m.blobs.Download(ctx, string(obj.Locator), dest); err != nil {
				return nil, fmt.Errorf("failed to download object %s: %w", obj.Hash, err)
			}
		}
	}

	if _, err := m.git.Run(ctx, dir, "update-server-info"); err != nil {
		log.Printf("WARN: update-server-info failed: %v", err)
	}

	ok = true
	return repo, nil
}
