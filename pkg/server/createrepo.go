package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"chaingit/pkg/meta"
)

// CreateRepoResponse 是建仓成功的 JSON 响应体
type CreateRepoResponse struct {
	Repo    string `json:"repo"`
	Address string `json:"address"`
}

// handleCreateRepo 为新仓库名部署一个账本合约。
// 名字占用以内存注册表为准: InsertIfAbsent 输了就是重复建仓，
// 已有句柄绝不覆盖。
func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("repo")

	if _, exists := s.registry.Lookup(name); exists {
		httpError(w, fmt.Errorf("repository already exists"))
		return
	}

	led, err := s.factory.Deploy(r.Context())
	if err != nil {
		httpError(w, fmt.Errorf("failed to deploy ledger contract: %w", err))
		return
	}

	if !s.registry.InsertIfAbsent(name, led) {
		// 两个并发建仓请求撞了同一个名字，后到的这个白部署了一个合约
		httpError(w, fmt.Errorf("repository already exists"))
		return
	}

	// 持久化名字->地址映射，重启后靠它重建注册表。
	// 写盘失败不回滚注册表: 仓库本轮进程内完全可用，只是重启后丢名字。
	if s.repos != nil {
		if err := s.repos.Create(r.Context(), name, led.Address()); err != nil &&
			!errors.Is(err, meta.ErrRepoExists) {
			slog.Error("failed to persist repo mapping",
				slog.String("repo", name), slog.String("err", err.Error()))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateRepoResponse{Repo: name, Address: led.Address()})
}
