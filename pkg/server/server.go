// pkg/server/server.go
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"chaingit/pkg/blob"
	"chaingit/pkg/gitexec"
	"chaingit/pkg/ledger"
	"chaingit/pkg/meta"
	"chaingit/pkg/registry"
	"chaingit/pkg/scratch"
)

// Server 把三类协议操作 (广告、fetch 协商、push 协商) 和
// 管理接口 (建仓、角色、健康检查) 挂到一棵路由树上。
// 它自己不持有任何每请求状态: 注册表是唯一共享资源，
// scratch 仓库由每个请求独占并在退出时销毁。
type Server struct {
	registry *registry.Registry
	factory  ledger.Factory
	mat      *scratch.Materializer
	git      gitexec.Runner
	blobs    blob.Store
	repos    *meta.Repository
}

func New(reg *registry.Registry, factory ledger.Factory, git gitexec.Runner, blobs blob.Store, repos *meta.Repository) *Server {
	return &Server{
		registry: reg,
		factory:  factory,
		mat:      scratch.NewMaterializer(git, blobs),
		git:      git,
		blobs:    blobs,
		repos:    repos,
	}
}

// Handler 组装路由。Go 1.22 的路径通配符让我们不用再手写前缀匹配。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /create-repo/{repo}", s.handleCreateRepo)

	// git smart HTTP 三件套
	mux.HandleFunc("GET /{repo}/info/refs", s.handleInfoRefs)
	mux.HandleFunc("POST /{repo}/git-upload-pack", s.handleUploadPack)
	mux.HandleFunc("POST /{repo}/git-receive-pack", s.handleReceivePack)

	// 角色管理: 直通账本的访问控制方法
	mux.HandleFunc("POST /repo/{repo}/grant-pusher/{address}", s.roleHandler(grantPusher))
	mux.HandleFunc("POST /repo/{repo}/revoke-pusher/{address}", s.roleHandler(revokePusher))
	mux.HandleFunc("POST /repo/{repo}/grant-admin/{address}", s.roleHandler(grantAdmin))
	mux.HandleFunc("POST /repo/{repo}/revoke-admin/{address}", s.roleHandler(revokeAdmin))
	mux.HandleFunc("GET /repo/{repo}/check-pusher/{address}", s.roleCheckHandler(checkPusher))
	mux.HandleFunc("GET /repo/{repo}/check-admin/{address}", s.roleCheckHandler(checkAdmin))

	return WithRecovery(WithLogging(mux))
}

// lookupRepo 从路径取仓库名并在注册表里找账本句柄
func (s *Server) lookupRepo(w http.ResponseWriter, r *http.Request) (string, ledger.Ledger, bool) {
	name := r.PathValue("repo")
	led, ok := s.registry.Lookup(name)
	if !ok {
		httpError(w, fmt.Errorf("repository %s not found", name))
		return name, nil, false
	}
	return name, led, true
}

// httpError 把错误映射成 400 + 纯文本消息。
// 协议层没有结构化错误体: git 客户端只把消息打给用户看。
func httpError(w http.ResponseWriter, err error) {
	slog.Warn("request failed", slog.String("err", err.Error()))
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
