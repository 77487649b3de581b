package scratch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chaingit/pkg/ledger"
	"chaingit/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger 只实现物化需要的两个读操作，其余走 panic
// (嵌入接口，让编译器别逼我们写全 20 个方法)。
type fakeLedger struct {
	ledger.Ledger
	refs    []types.Ref
	objects []types.Object
	refsErr error
}

func (f *fakeLedger) GetRefs(ctx context.Context) ([]types.Ref, error) {
	if f.refsErr != nil {
		return nil, f.refsErr
	}
	return f.refs, nil
}

func (f *fakeLedger) GetObjects(ctx context.Context) ([]types.Object, error) {
	return f.objects, nil
}

// fakeRunner 记录调用并模拟 git init 创建目录的副作用
type fakeRunner struct {
	calls   [][]string
	initErr error
}

func (f *fakeRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if len(args) > 0 && args[0] == "init" && f.initErr != nil {
		return nil, f.initErr
	}
	return nil, nil
}

func (f *fakeRunner) RunStream(ctx context.Context, dir string, input io.Reader, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, args)
	return nil, nil, nil
}

// fakeBlob 把下载目标路径记下来并落一个占位文件
type fakeBlob struct {
	downloads map[string]string // locator -> destPath
	err       error
}

func (f *fakeBlob) Upload(ctx context.Context, data []byte) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeBlob) Download(ctx context.Context, locator, destPath string) error {
	if f.err != nil {
		return f.err
	}
	if f.downloads == nil {
		f.downloads = map[string]string{}
	}
	f.downloads[locator] = destPath
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("obj"), 0644)
}

const (
	hashA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c"
	hashB = "aabbccddeeff00112233445566778899aabbccdd"
)

func TestMaterialize_WritesActiveRefs(t *testing.T) {
	led := &fakeLedger{refs: []types.Ref{
		{Name: "refs/heads/main", Target: hashA, Active: true},
		{Name: "refs/heads/dead", Target: hashB, Active: false},
		{Name: "refs/tags/v1", Target: hashB, Active: true},
	}}
	m := NewMaterializer(&fakeRunner{}, &fakeBlob{})

	repo, err := m.Materialize(context.Background(), led, Options{})
	require.NoError(t, err)
	defer repo.Remove()

	require.Len(t, repo.Refs, 2)

	data, err := os.ReadFile(filepath.Join(repo.Path, "refs", "heads", "main"))
	require.NoError(t, err)
	assert.Equal(t, hashA+"\n", string(data))

	data, err = os.ReadFile(filepath.Join(repo.Path, "refs", "tags", "v1"))
	require.NoError(t, err)
	assert.Equal(t, hashB+"\n", string(data))

	// inactive 的引用不落盘
	assert.NoFileExists(t, filepath.Join(repo.Path, "refs", "heads", "dead"))
}

func TestMaterialize_MalformedRefAborts(t *testing.T) {
	led := &fakeLedger{refs: []types.Ref{
		{Name: "refs/heads/main", Target: hashA, Active: true},
		{Name: "HEAD", Target: hashB, Active: true}, // 不在 refs/ 下
	}}
	m := NewMaterializer(&fakeRunner{}, &fakeBlob{})

	repo, err := m.Materialize(context.Background(), led, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMalformedRef)
	assert.Nil(t, repo)
}

func TestMaterialize_TraversalRefAborts(t *testing.T) {
	// ".." 的引用名会被拼成文件路径，绝不能写到 scratch 目录外面
	led := &fakeLedger{refs: []types.Ref{
		{Name: "refs/../../escape", Target: hashA, Active: true},
	}}
	m := NewMaterializer(&fakeRunner{}, &fakeBlob{})

	repo, err := m.Materialize(context.Background(), led, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMalformedRef)
	assert.Nil(t, repo)
}

func TestMaterialize_RequireRefs(t *testing.T) {
	led := &fakeLedger{refs: []types.Ref{
		{Name: "refs/heads/dead", Target: hashA, Active: false},
	}}
	m := NewMaterializer(&fakeRunner{}, &fakeBlob{})

	// 只剩 inactive 引用等价于空仓库
	_, err := m.Materialize(context.Background(), led, Options{RequireRefs: true})
	assert.ErrorIs(t, err, ErrEmptyRepository)

	// 不要求引用时空仓库合法
	repo, err := m.Materialize(context.Background(), led, Options{})
	require.NoError(t, err)
	defer repo.Remove()
	assert.Empty(t, repo.Refs)
}

func TestMaterialize_FetchObjects(t *testing.T) {
	led := &fakeLedger{
		refs: []types.Ref{{Name: "refs/heads/main", Target: hashA, Active: true}},
		objects: []types.Object{
			{Hash: hashA, Locator: []byte("QmLocatorA")},
			{Hash: hashB, Locator: []byte("QmLocatorB")},
		},
	}
	blobs := &fakeBlob{}
	m := NewMaterializer(&fakeRunner{}, blobs)

	repo, err := m.Materialize(context.Background(), led, Options{FetchObjects: true})
	require.NoError(t, err)
	defer repo.Remove()

	require.Len(t, blobs.downloads, 2)
	assert.Equal(t,
		filepath.Join(repo.Path, "objects", hashA[:2], hashA[2:]),
		blobs.downloads["QmLocatorA"])
	assert.FileExists(t, blobs.downloads["QmLocatorB"])
}

func TestMaterialize_DownloadFailureCleansUp(t *testing.T) {
	led := &fakeLedger{
		refs:    []types.Ref{{Name: "refs/heads/main", Target: hashA, Active: true}},
		objects: []types.Object{{Hash: hashA, Locator: []byte("QmX")}},
	}
	m := NewMaterializer(&fakeRunner{}, &fakeBlob{err: errors.New("ipfs down")})

	repo, err := m.Materialize(context.Background(), led, Options{FetchObjects: true})
	require.Error(t, err)
	assert.Nil(t, repo)
}

func TestMaterialize_InitFailureIsFatal(t *testing.T) {
	m := NewMaterializer(&fakeRunner{initErr: errors.New("no git")}, &fakeBlob{})

	_, err := m.Materialize(context.Background(), &fakeLedger{}, Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "initialize"))
}
