// pkg/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"math/big"

	"chaingit/pkg/types"
)

var (
	// ErrInvalidBatch: 批量写入的两个切片为空或长度不等，属于调用方 bug，
	// 检查发生在任何网络请求之前。
	ErrInvalidBatch = errors.New("invalid batch: empty or mismatched lengths")

	// ErrWriteFailed: 重试次数耗尽仍未写入成功
	ErrWriteFailed = errors.New("ledger write failed")

	// ErrVerificationFailed: 交易被接受但事后读不回来 (账本悄悄丢状态)，
	// 视为致命错误，绝不继续重试。
	ErrVerificationFailed = errors.New("ledger write verification failed")
)

// Ledger 定义了对引用/对象账本的全部类型化操作。
// 具体传输 (RPC 客户端、签名、ABI 编码) 是实现该接口的适配器，
// 测试时可以换成内存假实现。
type Ledger interface {
	// Address 返回账本句柄 (已部署合约) 的地址，0x 前缀十六进制
	Address() string

	// --- 读操作 (不在客户端层重试) ---
	GetRefs(ctx context.Context) ([]types.Ref, error)
	GetObjects(ctx context.Context) ([]types.Object, error)
	IsObjectExist(ctx context.Context, hash types.Hash) (bool, error)
	CheckObjects(ctx context.Context, hashes []types.Hash) ([]bool, error)
	GetRefsLength(ctx context.Context) (*big.Int, error)
	GetObjectsLength(ctx context.Context) (*big.Int, error)
	GetRefByID(ctx context.Context, id *big.Int) (types.Ref, error)
	GetObjectByID(ctx context.Context, id *big.Int) (types.Object, error)

	// --- 批量写 (3 次重试 + 回执轮询；AddRefs 额外做写后校验) ---
	AddObjects(ctx context.Context, hashes []types.Hash, locators [][]byte) error
	AddRefs(ctx context.Context, names []string, data [][]byte) error

	// --- 单条写 (原始合约接口保留，批量是首选路径) ---
	SaveObject(ctx context.Context, hash types.Hash, locator []byte) error
	AddRef(ctx context.Context, name string, data []byte) error

	// --- 访问控制直通 ---
	GrantPusherRole(ctx context.Context, address string) error
	RevokePusherRole(ctx context.Context, address string) error
	GrantAdminRole(ctx context.Context, address string) error
	RevokeAdminRole(ctx context.Context, address string) error
	HasPusherRole(ctx context.Context, address string) (bool, error)
	HasAdminRole(ctx context.Context, address string) (bool, error)

	// --- 仓库级配置 ---
	UpdateConfig(ctx context.Context, config []byte) error
	GetConfig(ctx context.Context) ([]byte, error)
}

// Factory 负责创建账本句柄: 部署新合约，或绑定到已有地址 (重启后恢复注册表用)
type Factory interface {
	Deploy(ctx context.Context) (Ledger, error)
	Attach(address string) (Ledger, error)
}
