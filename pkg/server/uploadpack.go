package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"chaingit/pkg/scratch"
)

// handleUploadPack 处理 fetch/clone 协商。
// want 校验必须发生在任何子进程 (包括物化的 git init) 之前:
// 客户端要一个账本里不存在的对象时，一个进程都不该起。
func (s *Server) handleUploadPack(w http.ResponseWriter, r *http.Request) {
	_, led, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	wants, err := ParseWants(body)
	if err != nil {
		httpError(w, err)
		return
	}
	for _, hash := range wants {
		exists, err := led.IsObjectExist(r.Context(), hash)
		if err != nil {
			httpError(w, fmt.Errorf("failed to check object %s: %w", hash, err))
			return
		}
		if !exists {
			httpError(w, fmt.Errorf("upload-pack: not our ref %s", hash))
			return
		}
	}

	repo, err := s.mat.Materialize(r.Context(), led, scratch.Options{
		FetchObjects: true,
		RequireRefs:  true,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	defer repo.Remove()

	stdout, stderr, err := s.git.RunStream(r.Context(), repo.Path,
		bytes.NewReader(body), "upload-pack", "--stateless-rpc", ".")
	// 协商失败 (比如客户端 have 了我们没有的对象) 时 git 退出非零，
	// 但 stdout 里往往已经是合法的错误响应 —— 有输出就照常返回。
	if err != nil && len(stdout) == 0 {
		httpError(w, fmt.Errorf("git upload-pack failed: %w: %s", err, stderr))
		return
	}

	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(stdout)
}
