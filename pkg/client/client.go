// pkg/client/client.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chaingit/pkg/server"
)

// DaemonClient 封装了对守护进程管理接口的 HTTP 调用，CLI 用。
// git 协议端点不在这里: 那些归 git 客户端自己打。
type DaemonClient struct {
	http    *http.Client
	baseURL string
}

func New(baseURL string) *DaemonClient {
	return &DaemonClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// HealthCheck 探活
func (c *DaemonClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

// CreateRepo 建仓，返回新部署的合约地址
func (c *DaemonClient) CreateRepo(ctx context.Context, repo string) (*server.CreateRepoResponse, error) {
	var created server.CreateRepoResponse
	path := "/create-repo/" + url.PathEscape(repo)
	if err := c.do(ctx, http.MethodPost, path, &created); err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return &created, nil
}

func (c *DaemonClient) GrantPusherRole(ctx context.Context, repo, address string) error {
	return c.do(ctx, http.MethodPost, c.rolePath(repo, "grant-pusher", address), nil)
}

func (c *DaemonClient) RevokePusherRole(ctx context.Context, repo, address string) error {
	return c.do(ctx, http.MethodPost, c.rolePath(repo, "revoke-pusher", address), nil)
}

func (c *DaemonClient) GrantAdminRole(ctx context.Context, repo, address string) error {
	return c.do(ctx, http.MethodPost, c.rolePath(repo, "grant-admin", address), nil)
}

func (c *DaemonClient) RevokeAdminRole(ctx context.Context, repo, address string) error {
	return c.do(ctx, http.MethodPost, c.rolePath(repo, "revoke-admin", address), nil)
}

func (c *DaemonClient) CheckPusherRole(ctx context.Context, repo, address string) (bool, error) {
	var check server.RoleCheckResponse
	if err := c.do(ctx, http.MethodGet, c.rolePath(repo, "check-pusher", address), &check); err != nil {
		return false, err
	}
	return check.HasRole, nil
}

func (c *DaemonClient) CheckAdminRole(ctx context.Context, repo, address string) (bool, error) {
	var check server.RoleCheckResponse
	if err := c.do(ctx, http.MethodGet, c.rolePath(repo, "check-admin", address), &check); err != nil {
		return false, err
	}
	return check.HasRole, nil
}

func (c *DaemonClient) rolePath(repo, action, address string) string {
	return fmt.Sprintf("/repo/%s/%s/%s", url.PathEscape(repo), action, url.PathEscape(address))
}

// do 发请求；非 2xx 时把响应体 (纯文本错误消息) 带进错误里
func (c *DaemonClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed (%d): %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
