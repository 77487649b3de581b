package server

import (
	"fmt"
	"net/http"
	"strings"

	"chaingit/pkg/scratch"
)

// handleInfoRefs 是 smart HTTP 的入口: 客户端先 GET info/refs?service=S
// 拿引用广告，再决定 POST 哪个协商端点。
// 响应必须手工拼帧: pkt-line 的 "# service=<S>\n" + flush + git 的原始输出。
func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request) {
	_, led, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}

	service := r.URL.Query().Get("service")
	if service != "git-upload-pack" && service != "git-receive-pack" {
		httpError(w, fmt.Errorf("unknown service: %q", service))
		return
	}

	// 广告只需要引用；对象留给真正的协商端点去拉
	repo, err := s.mat.Materialize(r.Context(), led, scratch.Options{})
	if err != nil {
		httpError(w, err)
		return
	}
	defer repo.Remove()

	subcmd := strings.TrimPrefix(service, "git-")
	stdout, err := s.git.Run(r.Context(), repo.Path, subcmd, "--advertise-refs", ".")
	if err != nil {
		httpError(w, fmt.Errorf("failed to generate refs advertisement: %w", err))
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", service))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(ServiceAnnouncement(service))
	w.Write(stdout)
}
