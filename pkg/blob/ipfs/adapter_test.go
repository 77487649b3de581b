package ipfs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"chaingit/pkg/blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode 模拟 IPFS 节点的 HTTP API (/api/v0/*)
type fakeNode struct {
	mux       *http.ServeMux
	addCalls  int32
	addFails  int32 // 前 N 次 add 返回 500
	blockBody []byte
	blockCode int
	catBody   []byte
	catCode   int
}

func newFakeNode() *fakeNode {
	n := &fakeNode{mux: http.NewServeMux(), blockCode: 500, catCode: 500}

	n.mux.HandleFunc("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"Version": "0.24.0"})
	})
	n.mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		calls := atomic.AddInt32(&n.addCalls, 1)
		if calls <= atomic.LoadInt32(&n.addFails) {
			http.Error(w, `{"Message":"add failed","Code":0}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"Name": "git_object", "Hash": "QmTestCid", "Size": "11",
		})
	})
	n.mux.HandleFunc("/api/v0/block/get", func(w http.ResponseWriter, r *http.Request) {
		if n.blockCode != 200 {
			http.Error(w, `{"Message":"block not found","Code":0}`, n.blockCode)
			return
		}
		w.Write(n.blockBody)
	})
	n.mux.HandleFunc("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		if n.catCode != 200 {
			http.Error(w, `{"Message":"cat failed","Code":0}`, n.catCode)
			return
		}
		w.Write(n.catBody)
	})

	return n
}

// newTestAdapter 返回不真正睡眠的适配器，并记录退避序列
func newTestAdapter(apiURL, gateway string, slept *[]time.Duration) *Adapter {
	a := NewAdapter(Config{APIURL: apiURL, Gateway: gateway})
	a.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return a
}

func TestUpload_Success(t *testing.T) {
	node := newFakeNode()
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	cid, err := a.Upload(context.Background(), []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "QmTestCid", cid)
	assert.Empty(t, slept, "first-attempt success should not back off")
}

func TestUpload_RetryThenSuccess(t *testing.T) {
	node := newFakeNode()
	node.addFails = 2
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	cid, err := a.Upload(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "QmTestCid", cid)
	assert.Equal(t, int32(3), atomic.LoadInt32(&node.addCalls))
	// 退避: 1000ms, 2000ms
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, slept)
}

func TestUpload_Exhausted(t *testing.T) {
	node := newFakeNode()
	node.addFails = 99
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	_, err := a.Upload(context.Background(), []byte("payload"))
	assert.ErrorIs(t, err, blob.ErrUploadFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&node.addCalls))
}

func TestDownload_CatFallback(t *testing.T) {
	// block API 返回 500，cat 返回 200 内容 X
	// -> 第一轮内就成功，不产生任何退避
	node := newFakeNode()
	node.catCode = 200
	node.catBody = []byte("X")
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	dest := filepath.Join(t.TempDir(), "objects", "2c", "f24dba")
	err := a.Download(context.Background(), "QmTestCid", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("X"), content)
	assert.Empty(t, slept, "success within the first round must not sleep")
}

func TestDownload_BlockGetFirst(t *testing.T) {
	node := newFakeNode()
	node.blockCode = 200
	node.blockBody = []byte("raw block bytes")
	node.catCode = 200
	node.catBody = []byte("should not be used")
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	dest := filepath.Join(t.TempDir(), "obj")
	err := a.Download(context.Background(), "QmTestCid", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw block bytes"), content, "block/get wins over cat")
}

func TestDownload_GatewayFallback(t *testing.T) {
	node := newFakeNode()
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmTestCid", r.URL.Path)
		w.Write([]byte("gateway content"))
	}))
	defer gw.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, gw.URL+"/ipfs/", &slept)

	dest := filepath.Join(t.TempDir(), "obj")
	err := a.Download(context.Background(), "QmTestCid", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("gateway content"), content)
}

func TestDownload_Exhausted(t *testing.T) {
	node := newFakeNode()
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	err := a.Download(context.Background(), "QmMissing", filepath.Join(t.TempDir(), "obj"))
	assert.ErrorIs(t, err, blob.ErrDownloadFailed)
	// 3 轮 = 2 次退避
	assert.Len(t, slept, 2)
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	// 内容往返: download(upload(B)) == B，不管哪个策略命中
	payload := []byte("\x78\x01binary git object payload\x00\xff")

	node := newFakeNode()
	node.blockCode = 200
	node.blockBody = payload
	ts := httptest.NewServer(node.mux)
	defer ts.Close()

	var slept []time.Duration
	a := newTestAdapter(ts.URL, "", &slept)

	cid, err := a.Upload(context.Background(), payload)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "roundtrip")
	require.NoError(t, a.Download(context.Background(), cid, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
