// pkg/ledger/cache/cached.go
package cache

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"chaingit/pkg/ledger"
	"chaingit/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedLedger 是一个装饰器，为底层的 ledger.Ledger 添加 Redis 缓存层。
// 只缓存对象存在性: receive-pack 每收一次推送都要对 scratch 树里的
// 每个松散对象查一次 IsObjectExist，而账本里的对象只增不删，命中即真。
type CachedLedger struct {
	backend ledger.Ledger
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedLedger(backend ledger.Ledger, cfg Config) (*CachedLedger, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedLedger{backend: backend, client: client, ttl: cfg.TTL}, nil
}

// newWithClient 供测试注入已有客户端
func newWithClient(backend ledger.Ledger, client *redis.Client, ttl time.Duration) *CachedLedger {
	return &CachedLedger{backend: backend, client: client, ttl: ttl}
}

// cacheKey 按合约地址隔离，不同仓库的对象空间互不污染
func (c *CachedLedger) cacheKey(hash types.Hash) string {
	return "cg:obj:" + c.backend.Address() + ":" + string(hash)
}

// IsObjectExist 优先查 Redis。
// 缓存故障降级: Redis 挂了就退化为直查账本，绝不让请求失败。
func (c *CachedLedger) IsObjectExist(ctx context.Context, hash types.Hash) (bool, error) {
	key := c.cacheKey(hash)

	val, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		log.Printf("WARN: redis error, falling through to ledger: %v", err)
	} else if val > 0 {
		return true, nil
	}

	found, err := c.backend.IsObjectExist(ctx, hash)
	if err != nil {
		return false, err
	}

	// 缓存回填: 异步，不阻塞主流程；用独立 context 保证回填能完成
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			c.client.Set(fillCtx, key, "1", c.ttl)
		}()
	}

	return found, nil
}

// AddObjects 写直达账本，成功后顺手写缓存 (Set 失败可忽略)
func (c *CachedLedger) AddObjects(ctx context.Context, hashes []types.Hash, locators [][]byte) error {
	if err := c.backend.AddObjects(ctx, hashes, locators); err != nil {
		return err
	}
	for _, h := range hashes {
		c.client.Set(ctx, c.cacheKey(h), "1", c.ttl)
	}
	return nil
}

// --- 其余操作透传 ---

func (c *CachedLedger) Address() string { return c.backend.Address() }

func (c *CachedLedger) GetRefs(ctx context.Context) ([]types.Ref, error) {
	return c.backend.GetRefs(ctx)
}

func (c *CachedLedger) GetObjects(ctx context.Context) ([]types.Object, error) {
	return c.backend.GetObjects(ctx)
}

func (c *CachedLedger) CheckObjects(ctx context.Context, hashes []types.Hash) ([]bool, error) {
	return c.backend.CheckObjects(ctx, hashes)
}

func (c *CachedLedger) GetRefsLength(ctx context.Context) (*big.Int, error) {
	return c.backend.GetRefsLength(ctx)
}

func (c *CachedLedger) GetObjectsLength(ctx context.Context) (*big.Int, error) {
	return c.backend.GetObjectsLength(ctx)
}

func (c *CachedLedger) GetRefByID(ctx context.Context, id *big.Int) (types.Ref, error) {
	return c.backend.GetRefByID(ctx, id)
}

func (c *CachedLedger) GetObjectByID(ctx context.Context, id *big.Int) (types.Object, error) {
	return c.backend.GetObjectByID(ctx, id)
}

func (c *CachedLedger) AddRefs(ctx context.Context, names []string, data [][]byte) error {
	return c.backend.AddRefs(ctx, names, data)
}

func (c *CachedLedger) SaveObject(ctx context.Context, hash types.Hash, locator []byte) error {
	return c.backend.SaveObject(ctx, hash, locator)
}

func (c *CachedLedger) AddRef(ctx context.Context, name string, data []byte) error {
	return c.backend.AddRef(ctx, name, data)
}

func (c *CachedLedger) GrantPusherRole(ctx context.Context, address string) error {
	return c.backend.GrantPusherRole(ctx, address)
}

func (c *CachedLedger) RevokePusherRole(ctx context.Context, address string) error {
	return c.backend.RevokePusherRole(ctx, address)
}

func (c *CachedLedger) GrantAdminRole(ctx context.Context, address string) error {
	return c.backend.GrantAdminRole(ctx, address)
}

func (c *CachedLedger) RevokeAdminRole(ctx context.Context, address string) error {
	return c.backend.RevokeAdminRole(ctx, address)
}

func (c *CachedLedger) HasPusherRole(ctx context.Context, address string) (bool, error) {
	return c.backend.HasPusherRole(ctx, address)
}

func (c *CachedLedger) HasAdminRole(ctx context.Context, address string) (bool, error) {
	return c.backend.HasAdminRole(ctx, address)
}

func (c *CachedLedger) UpdateConfig(ctx context.Context, config []byte) error {
	return c.backend.UpdateConfig(ctx, config)
}

func (c *CachedLedger) GetConfig(ctx context.Context) ([]byte, error) {
	return c.backend.GetConfig(ctx)
}
