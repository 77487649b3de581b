package gitexec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) *Git {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("Skipping git integration test: %v", err)
	}
	g, err := New()
	require.NoError(t, err)
	return g
}

func TestGit_Run(t *testing.T) {
	g := requireGit(t)
	dir := t.TempDir()

	out, err := g.Run(context.Background(), dir, "init", "--bare")
	require.NoError(t, err)
	_ = out

	// 裸仓库应该有 HEAD
	out, err = g.Run(context.Background(), dir, "rev-parse", "--is-bare-repository")
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(string(out)))
}

func TestGit_Run_FailureIncludesStderr(t *testing.T) {
	g := requireGit(t)
	dir := t.TempDir()

	_, err := g.Run(context.Background(), dir, "no-such-subcommand")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git no-such-subcommand failed")
}

func TestGit_RunStream_PumpsLargeInput(t *testing.T) {
	g := requireGit(t)
	dir := t.TempDir()
	_, err := g.Run(context.Background(), dir, "init", "--bare")
	require.NoError(t, err)

	// 用 hash-object --stdin 验证 stdin/stdout 双向泵送。
	// 输入远大于管道缓冲 (64KB)，顺序写读会死锁的话这里会挂住。
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<16) // 1MB

	stdout, stderr, err := g.RunStream(context.Background(), dir,
		bytes.NewReader(payload), "hash-object", "-w", "--stdin")
	require.NoError(t, err, "stderr: %s", stderr)

	hash := strings.TrimSpace(string(stdout))
	assert.Len(t, hash, 40)
}
