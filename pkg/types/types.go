// pkg/types/types.go
package types

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Hash 代表 Git 对象的唯一标识符 (SHA-1 Hex String, 40 字符)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != 40 {
		return false
	}
	for _, c := range h {
		if !isHexLower(byte(c)) {
			return false
		}
	}
	return true
}

// LoosePath 返回松散对象相对 objects/ 目录的路径
// Logic: "aabbcc..." -> "aa/bbcc..."
func (h Hash) LoosePath() string {
	s := string(h)
	if len(s) < 2 {
		return s
	}
	return path.Join(s[:2], s[2:])
}

// HashFromLoosePath 从 "aa" + "bbcc..." 还原出完整 Hash
// 非松散对象路径 (比如 objects/pack 下的包文件) 返回 false
func HashFromLoosePath(dir, file string) (Hash, bool) {
	if len(dir) != 2 || len(file) != 38 {
		return "", false
	}
	h := Hash(dir + file)
	if !h.IsValid() {
		return "", false
	}
	return h, true
}

func isHexLower(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

var (
	ErrMalformedRef = errors.New("malformed ref")
)

// Ref 是账本中的一条引用记录
// Target 是 40 位 SHA-1；Active=false 表示逻辑删除 (物化时跳过)
type Ref struct {
	Name   string
	Target Hash
	Active bool
	Origin string // 提交该引用的账户地址
}

// Validate 检查引用不变量: 名字必须以 refs/ 开头且不含 "."/".."/空路径段
// (引用名会被拼成文件路径，".." 能逃出仓库目录)，
// Target 必须是 40 位小写十六进制
func (r Ref) Validate() error {
	if !strings.HasPrefix(r.Name, "refs/") {
		return fmt.Errorf("%w: name %q does not start with refs/", ErrMalformedRef, r.Name)
	}
	for _, seg := range strings.Split(r.Name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: name %q contains invalid path segment", ErrMalformedRef, r.Name)
		}
	}
	if !r.Target.IsValid() {
		return fmt.Errorf("%w: %s target %q is not a 40-char sha1", ErrMalformedRef, r.Name, r.Target)
	}
	return nil
}

// Object 是账本中的一条对象记录
// Locator 是 Blob 网络里的位置标识 (IPFS CID / S3 Key)，对账本来说是 opaque bytes
type Object struct {
	Hash    Hash
	Locator []byte
	Origin  string
}
