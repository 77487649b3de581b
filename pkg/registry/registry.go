// pkg/registry/registry.go
package registry

import (
	"sync"

	"chaingit/pkg/ledger"
)

// Registry 是进程内唯一的共享可变状态: 仓库名 -> 账本句柄
// 只暴露 Lookup 和 InsertIfAbsent，不允许外部遍历或原地修改。
// 锁只覆盖 O(1) 的 map 操作，绝不跨越网络 I/O。
type Registry struct {
	mu    sync.RWMutex
	repos map[string]ledger.Ledger
}

func New() *Registry {
	return &Registry{repos: make(map[string]ledger.Ledger)}
}

// Lookup 非阻塞读取仓库的账本句柄
func (r *Registry) Lookup(name string) (ledger.Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.repos[name]
	return l, ok
}

// InsertIfAbsent 原子插入。返回 false 表示该名字已有句柄 (仓库已存在)，
// 此时保留旧句柄，绝不覆盖。
func (r *Registry) InsertIfAbsent(name string, l ledger.Ledger) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repos[name]; exists {
		return false
	}
	r.repos[name] = l
	return true
}
