package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chaingit/pkg/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// RoleResponse 是授予/撤销角色的 JSON 响应体
type RoleResponse struct {
	Repo    string `json:"repo"`
	Address string `json:"address"`
	Role    string `json:"role"`
	Granted bool   `json:"granted"`
}

// RoleCheckResponse 是角色查询的 JSON 响应体
type RoleCheckResponse struct {
	Repo    string `json:"repo"`
	Address string `json:"address"`
	Role    string `json:"role"`
	HasRole bool   `json:"has_role"`
}

// roleOp 描述一个写角色操作: 调用哪个账本方法，响应里怎么描述它
type roleOp struct {
	role    string
	granted bool
	call    func(ledger.Ledger, context.Context, string) error
}

var (
	grantPusher = roleOp{"pusher", true, func(l ledger.Ledger, ctx context.Context, a string) error {
		return l.GrantPusherRole(ctx, a)
	}}
	revokePusher = roleOp{"pusher", false, func(l ledger.Ledger, ctx context.Context, a string) error {
		return l.RevokePusherRole(ctx, a)
	}}
	grantAdmin = roleOp{"admin", true, func(l ledger.Ledger, ctx context.Context, a string) error {
		return l.GrantAdminRole(ctx, a)
	}}
	revokeAdmin = roleOp{"admin", false, func(l ledger.Ledger, ctx context.Context, a string) error {
		return l.RevokeAdminRole(ctx, a)
	}}
)

// roleCheck 描述一个只读角色查询
type roleCheck struct {
	role string
	call func(ledger.Ledger, context.Context, string) (bool, error)
}

var (
	checkPusher = roleCheck{"pusher", func(l ledger.Ledger, ctx context.Context, a string) (bool, error) {
		return l.HasPusherRole(ctx, a)
	}}
	checkAdmin = roleCheck{"admin", func(l ledger.Ledger, ctx context.Context, a string) (bool, error) {
		return l.HasAdminRole(ctx, a)
	}}
)

// roleHandler 把一个写角色操作包装成 HTTP 处理器。
// 六个端点除了调用的账本方法全长一个样，没必要写六遍。
func (s *Server) roleHandler(op roleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, led, ok := s.lookupRepo(w, r)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if !common.IsHexAddress(address) {
			httpError(w, fmt.Errorf("invalid address format: %s", address))
			return
		}
		if err := op.call(led, r.Context(), address); err != nil {
			httpError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RoleResponse{
			Repo:    name,
			Address: address,
			Role:    op.role,
			Granted: op.granted,
		})
	}
}

func (s *Server) roleCheckHandler(op roleCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, led, ok := s.lookupRepo(w, r)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if !common.IsHexAddress(address) {
			httpError(w, fmt.Errorf("invalid address format: %s", address))
			return
		}
		has, err := op.call(led, r.Context(), address)
		if err != nil {
			httpError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RoleCheckResponse{
			Repo:    name,
			Address: address,
			Role:    op.role,
			HasRole: has,
		})
	}
}
