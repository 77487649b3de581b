// pkg/blob/ipfs/adapter.go
package ipfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"chaingit/pkg/blob"

	shell "github.com/ipfs/go-ipfs-api"
)

// Adapter 实现了 blob.Store 接口，对接 IPFS 节点的 HTTP API。
// 下载按三种策略顺序尝试: block/get -> cat -> 公网网关
type Adapter struct {
	sh      *shell.Shell
	gateway string // 公网网关 URL 前缀，空 = 跳过网关策略
	http    *http.Client
	// sleep 可注入，测试时替换掉真实退避
	sleep func(time.Duration)
}

// Config 用于初始化 Adapter
type Config struct {
	APIURL  string // IPFS 节点 API，比如 http://127.0.0.1:5001
	Gateway string // 比如 https://ipfs.io/ipfs/
}

const (
	maxAttempts = 3
	baseBackoff = 1000 * time.Millisecond
)

func NewAdapter(cfg Config) *Adapter {
	sh := shell.NewShell(cfg.APIURL)
	sh.SetTimeout(30 * time.Second)

	return &Adapter{
		sh:      sh,
		gateway: cfg.Gateway,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// backoff: 1000ms * 2^(attempt-1)，只在重试前睡，第一次不睡
func (a *Adapter) backoff(retry int) {
	a.sleep(baseBackoff * (1 << (retry - 1)))
}

// Upload 上传并 pin，最多 3 次。
// raw-leaves 保证小文件作为单个 raw block 存储, CID 可直接走 block/get 取回。
func (a *Adapter) Upload(ctx context.Context, content []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			a.backoff(attempt - 1)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		cid, err := a.sh.Add(bytes.NewReader(content), shell.Pin(true), shell.RawLeaves(true))
		if err != nil {
			lastErr = err
			log.Printf("ipfs upload attempt %d/%d failed: %v", attempt, maxAttempts, err)
			continue
		}

		// 尽力而为的网关可达性检查: 失败只记日志，传播本身已经成功
		a.verifyGateway(ctx, cid)
		return cid, nil
	}

	return "", fmt.Errorf("%w: after %d attempts: %v", blob.ErrUploadFailed, maxAttempts, lastErr)
}

func (a *Adapter) verifyGateway(ctx context.Context, cid string) {
	if a.gateway == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.gateway+cid, nil)
	if err != nil {
		return
	}
	resp, err := a.http.Do(req)
	if err != nil {
		log.Printf("WARN: failed to verify cid %s on gateway: %v (content may need time to propagate)", cid, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("WARN: gateway returned status %d for cid %s (content may need time to propagate)", resp.StatusCode, cid)
	}
}

// Download 取回 locator 指向的内容并写到 destPath。
// 最多 3 轮，每轮内按 block/get -> cat -> 网关 的顺序尝试，第一个命中的赢。
// 任何策略报错或非 2xx 都算 miss，继续下一个策略。
func (a *Adapter) Download(ctx context.Context, locator string, destPath string) error {
	if parent := filepath.Dir(destPath); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("failed to create parent directories: %w", err)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			a.backoff(attempt - 1)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if content, ok := a.tryBlockGet(locator); ok {
			return writeDest(destPath, content)
		}
		if content, ok := a.tryCat(locator); ok {
			return writeDest(destPath, content)
		}
		if content, ok := a.tryGateway(ctx, locator); ok {
			return writeDest(destPath, content)
		}
	}

	return fmt.Errorf("%w: %s after %d attempts", blob.ErrDownloadFailed, locator, maxAttempts)
}

// tryBlockGet: 直接取 raw block，对 raw-leaves 上传的对象是逐字节一致的
func (a *Adapter) tryBlockGet(locator string) ([]byte, bool) {
	content, err := a.sh.BlockGet(locator)
	if err != nil {
		log.Printf("ipfs block/get miss for %s: %v", locator, err)
		return nil, false
	}
	return content, true
}

func (a *Adapter) tryCat(locator string) ([]byte, bool) {
	rc, err := a.sh.Cat(locator)
	if err != nil {
		log.Printf("ipfs cat miss for %s: %v", locator, err)
		return nil, false
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		log.Printf("ipfs cat read failed for %s: %v", locator, err)
		return nil, false
	}
	return content, true
}

func (a *Adapter) tryGateway(ctx context.Context, locator string) ([]byte, bool) {
	if a.gateway == "" {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.gateway+locator, nil)
	if err != nil {
		return nil, false
	}
	resp, err := a.http.Do(req)
	if err != nil {
		log.Printf("ipfs gateway miss for %s: %v", locator, err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("ipfs gateway returned status %d for %s", resp.StatusCode, locator)
		return nil, false
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return content, true
}

func writeDest(destPath string, content []byte) error {
	if err := os.WriteFile(destPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}
