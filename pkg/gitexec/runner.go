// pkg/gitexec/runner.go
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Runner 抽象 git 子进程调用，测试时可以换成假实现
// (协议处理器能在不装 git 的机器上测)。
type Runner interface {
	// Run 在 dir 下执行 git 子命令，返回 stdout。
	// 非零退出码包装成 error，stderr 附在错误文案里。
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)

	// RunStream 在 dir 下执行 git 子命令，把 input 灌进 stdin 并收集 stdout/stderr。
	// 非零退出时 err 非 nil，但 stdout 仍然返回
	// (upload-pack 协商失败时可能已经产出了有效的部分响应)。
	RunStream(ctx context.Context, dir string, input io.Reader, args ...string) (stdout, stderr []byte, err error)
}

// Git 是真实实现，调用 PATH 里的 git 可执行文件
type Git struct {
	path string
}

func New() (*Git, error) {
	path, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git binary not found in PATH: %w", err)
	}
	return &Git{path: path}, nil
}

func (g *Git) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("git %s failed: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// RunStream 必须并发泵送两个方向:
// 推送的 pack 可能非常大，如果先写完 stdin 再去读 stdout，
// 一旦内核管道缓冲被 git 的输出填满，双方就会互相等死。
// 写入和读取各占一个 goroutine，join 之后才看退出码。
func (g *Git) RunStream(ctx context.Context, dir string, input io.Reader, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, g.path, args...)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start git %s: %w", strings.Join(args, " "), err)
	}

	var stdout []byte
	g8, _ := errgroup.WithContext(ctx)
	g8.Go(func() error {
		defer stdin.Close()
		if input == nil {
			return nil
		}
		_, err := io.Copy(stdin, input)
		return err
	})
	g8.Go(func() error {
		var err error
		stdout, err = io.ReadAll(stdoutPipe)
		return err
	})

	pumpErr := g8.Wait()
	waitErr := cmd.Wait()

	if pumpErr != nil {
		return stdout, stderr.Bytes(), fmt.Errorf("git %s stream error: %w", strings.Join(args, " "), pumpErr)
	}
	if waitErr != nil {
		return stdout, stderr.Bytes(), fmt.Errorf("git %s failed: %w: %s",
			strings.Join(args, " "), waitErr, strings.TrimSpace(stderr.String()))
	}
	return stdout, stderr.Bytes(), nil
}
