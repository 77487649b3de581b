// pkg/ledger/eth/adapter.go
package eth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"chaingit/pkg/ledger"
	"chaingit/pkg/types"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrInvalidAddress = errors.New("invalid address format")

// Config 用于初始化 Factory
type Config struct {
	RPCURL       string
	PrivateKey   string // 提交账户的签名私钥 (hex，可带 0x 前缀)
	ArtifactPath string // RepositoryContract 的 hardhat 构建产物
	GasLimit     uint64 // 0 表示用默认值 4,000,000
}

const defaultGasLimit = 4_000_000

// Factory 持有 RPC 连接、签名器与合约产物，负责部署新合约或绑定已有地址。
// 实现 ledger.Factory 接口。
type Factory struct {
	client   *ethclient.Client
	auth     *bind.TransactOpts
	artifact *Artifact
	policy   ledger.RetryPolicy
}

// NewFactory 建立 RPC 连接并准备签名器。
// 链 ID 从节点读取，避免配置里再写一遍。
func NewFactory(ctx context.Context, cfg Config) (*Factory, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger rpc %s: %w", cfg.RPCURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = defaultGasLimit
	}
	auth.GasLimit = cfg.GasLimit

	artifact, err := LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}

	return &Factory{
		client:   client,
		auth:     auth,
		artifact: artifact,
		policy:   ledger.DefaultRetryPolicy(),
	}, nil
}

// Deploy 部署一个新的仓库合约并等待上链
func (f *Factory) Deploy(ctx context.Context) (ledger.Ledger, error) {
	if len(f.artifact.Bytecode) == 0 {
		return nil, fmt.Errorf("contract artifact has no bytecode, cannot deploy")
	}

	opts := *f.auth
	opts.Context = ctx

	addr, tx, bound, err := bind.DeployContract(&opts, f.artifact.ABI, f.artifact.Bytecode, f.client)
	if err != nil {
		return nil, fmt.Errorf("contract deployment failed: %w", err)
	}

	if _, err := bind.WaitDeployed(ctx, f.client, tx); err != nil {
		return nil, fmt.Errorf("contract deployment not mined: %w", err)
	}

	log.Printf("deployed repository contract at %s", strings.ToLower(addr.Hex()))
	return f.contract(addr, bound), nil
}

// Attach 绑定到一个已部署的合约地址 (daemon 重启后恢复注册表用)
func (f *Factory) Attach(address string) (ledger.Ledger, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)
	bound := bind.NewBoundContract(addr, f.artifact.ABI, f.client, f.client, f.client)
	return f.contract(addr, bound), nil
}

func (f *Factory) contract(addr common.Address, bound *bind.BoundContract) *Contract {
	return &Contract{
		address: addr,
		bound:   bound,
		client:  f.client,
		auth:    f.auth,
		policy:  f.policy,
	}
}

// refRecord / objectRecord 对应合约里的 struct 布局，
// 字段名必须与 ABI 的 tuple components 一致 (name/data/isActive/pusher 等)
type refRecord struct {
	Name     string
	Data     []byte
	IsActive bool
	Pusher   common.Address
}

type objectRecord struct {
	Hash    string
	IpfsUrl []byte
	Pusher  common.Address
}

// Contract 是 ledger.Ledger 的以太坊适配器。
// 读操作直接透传给合约 call；写操作走 RetryPolicy (提交 + 回执轮询)。
type Contract struct {
	address common.Address
	bound   *bind.BoundContract
	client  *ethclient.Client
	auth    *bind.TransactOpts
	policy  ledger.RetryPolicy
}

func (c *Contract) Address() string {
	return strings.ToLower(c.address.Hex())
}

func (c *Contract) call(ctx context.Context, results *[]interface{}, method string, params ...interface{}) error {
	opts := &bind.CallOpts{Context: ctx}
	if err := c.bound.Call(opts, results, method, params...); err != nil {
		return fmt.Errorf("ledger call %s failed: %w", method, err)
	}
	return nil
}

// submit 发起一笔交易并轮询一次回执，把结果翻译成 RetryPolicy 的分类:
// 回执成功 -> Confirmed；回执还没出来 -> Pending (乐观成功)；回执失败 -> Reverted
func (c *Contract) submit(ctx context.Context, method string, params ...interface{}) (ledger.SubmitResult, error) {
	opts := *c.auth
	opts.Context = ctx

	tx, err := c.bound.Transact(&opts, method, params...)
	if err != nil {
		return 0, err
	}

	receipt, err := c.client.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			log.Printf("ledger %s: receipt lookup failed for %s: %v", method, tx.Hash().Hex(), err)
		}
		return ledger.SubmitPending, nil
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return ledger.SubmitConfirmed, nil
	}
	return ledger.SubmitReverted, nil
}

// --- 读操作 ---

func (c *Contract) GetRefs(ctx context.Context) ([]types.Ref, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getRefs"); err != nil {
		return nil, err
	}
	records := *abi.ConvertType(out[0], new([]refRecord)).(*[]refRecord)

	refs := make([]types.Ref, 0, len(records))
	for _, r := range records {
		refs = append(refs, types.Ref{
			Name:   r.Name,
			Target: types.Hash(r.Data),
			Active: r.IsActive,
			Origin: strings.ToLower(r.Pusher.Hex()),
		})
	}
	return refs, nil
}

func (c *Contract) GetObjects(ctx context.Context) ([]types.Object, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getObjects"); err != nil {
		return nil, err
	}
	records := *abi.ConvertType(out[0], new([]objectRecord)).(*[]objectRecord)

	objects := make([]types.Object, 0, len(records))
	for _, o := range records {
		objects = append(objects, types.Object{
			Hash:    types.Hash(o.Hash),
			Locator: o.IpfsUrl,
			Origin:  strings.ToLower(o.Pusher.Hex()),
		})
	}
	return objects, nil
}

func (c *Contract) IsObjectExist(ctx context.Context, hash types.Hash) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isObjectExist", string(hash)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Contract) CheckObjects(ctx context.Context, hashes []types.Hash) ([]bool, error) {
	strs := make([]string, len(hashes))
	for i, h := range hashes {
		strs[i] = string(h)
	}
	var out []interface{}
	if err := c.call(ctx, &out, "checkObjects", strs); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]bool)).(*[]bool), nil
}

func (c *Contract) GetRefsLength(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getRefsLength"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Contract) GetObjectsLength(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getObjectsLength"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Contract) GetRefByID(ctx context.Context, id *big.Int) (types.Ref, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getRefById", id); err != nil {
		return types.Ref{}, err
	}
	return types.Ref{
		Name:   *abi.ConvertType(out[0], new(string)).(*string),
		Target: types.Hash(*abi.ConvertType(out[1], new([]byte)).(*[]byte)),
		Active: *abi.ConvertType(out[2], new(bool)).(*bool),
		Origin: strings.ToLower((*abi.ConvertType(out[3], new(common.Address)).(*common.Address)).Hex()),
	}, nil
}

func (c *Contract) GetObjectByID(ctx context.Context, id *big.Int) (types.Object, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getObjectById", id); err != nil {
		return types.Object{}, err
	}
	return types.Object{
		Hash:    types.Hash(*abi.ConvertType(out[0], new(string)).(*string)),
		Locator: *abi.ConvertType(out[1], new([]byte)).(*[]byte),
		Origin:  strings.ToLower((*abi.ConvertType(out[2], new(common.Address)).(*common.Address)).Hex()),
	}, nil
}

// --- 批量写 ---

func (c *Contract) AddObjects(ctx context.Context, hashes []types.Hash, locators [][]byte) error {
	// 前置校验在任何网络请求之前
	if len(hashes) == 0 || len(hashes) != len(locators) {
		return fmt.Errorf("%w: hashes=%d locators=%d", ledger.ErrInvalidBatch, len(hashes), len(locators))
	}

	strs := make([]string, len(hashes))
	for i, h := range hashes {
		strs[i] = string(h)
	}

	return c.policy.Run(ctx, "addObjects", func(ctx context.Context) (ledger.SubmitResult, error) {
		return c.submit(ctx, "addObjects", strs, locators)
	})
}

func (c *Contract) AddRefs(ctx context.Context, names []string, data [][]byte) error {
	if len(names) == 0 || len(names) != len(data) {
		return fmt.Errorf("%w: names=%d data=%d", ledger.ErrInvalidBatch, len(names), len(data))
	}

	err := c.policy.Run(ctx, "addRefs", func(ctx context.Context) (ledger.SubmitResult, error) {
		return c.submit(ctx, "addRefs", names, data)
	})
	if err != nil {
		return err
	}

	// 写后校验: 防着那种收下交易却悄悄丢状态的节点。
	// 读不回来就是致命错误，不再重试。
	return verifyRefs(ctx, names, c.GetRefs)
}

// verifyRefs 把写进去的引用立即读回来比对。
// getRefs 作参数传入，校验逻辑不绑死在 RPC 绑定上。
func verifyRefs(ctx context.Context, names []string, getRefs func(context.Context) ([]types.Ref, error)) error {
	stored, err := getRefs(ctx)
	if err != nil {
		return fmt.Errorf("%w: readback failed: %v", ledger.ErrVerificationFailed, err)
	}

	active := make(map[string]bool, len(stored))
	for _, r := range stored {
		if r.Active {
			active[r.Name] = true
		}
	}
	for _, name := range names {
		if !active[name] {
			return fmt.Errorf("%w: ref %s not visible after write", ledger.ErrVerificationFailed, name)
		}
	}
	return nil
}

// --- 单条写 (合约的原始接口，批量路径是首选) ---

func (c *Contract) SaveObject(ctx context.Context, hash types.Hash, locator []byte) error {
	_, err := c.transactOnce(ctx, "saveObject", string(hash), locator)
	return err
}

func (c *Contract) AddRef(ctx context.Context, name string, data []byte) error {
	_, err := c.transactOnce(ctx, "addRef", name, data)
	return err
}

func (c *Contract) transactOnce(ctx context.Context, method string, params ...interface{}) (*ethtypes.Transaction, error) {
	opts := *c.auth
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("ledger %s failed: %w", method, err)
	}
	return tx, nil
}

// --- 访问控制直通 ---

func (c *Contract) GrantPusherRole(ctx context.Context, address string) error {
	return c.roleWrite(ctx, "grantPusherRole", address)
}

func (c *Contract) RevokePusherRole(ctx context.Context, address string) error {
	return c.roleWrite(ctx, "revokePusherRole", address)
}

func (c *Contract) GrantAdminRole(ctx context.Context, address string) error {
	return c.roleWrite(ctx, "grantAdminRole", address)
}

func (c *Contract) RevokeAdminRole(ctx context.Context, address string) error {
	return c.roleWrite(ctx, "revokeAdminRole", address)
}

func (c *Contract) roleWrite(ctx context.Context, method, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	_, err := c.transactOnce(ctx, method, common.HexToAddress(address))
	return err
}

func (c *Contract) HasPusherRole(ctx context.Context, address string) (bool, error) {
	return c.roleCheck(ctx, "hasPusherRole", address)
}

func (c *Contract) HasAdminRole(ctx context.Context, address string) (bool, error) {
	return c.roleCheck(ctx, "hasAdminRole", address)
}

func (c *Contract) roleCheck(ctx context.Context, method, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	var out []interface{}
	if err := c.call(ctx, &out, method, common.HexToAddress(address)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// --- 仓库级配置 ---

func (c *Contract) UpdateConfig(ctx context.Context, config []byte) error {
	_, err := c.transactOnce(ctx, "updateConfig", config)
	return err
}

func (c *Contract) GetConfig(ctx context.Context) ([]byte, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getConfig"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]byte)).(*[]byte), nil
}
