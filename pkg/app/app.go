// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chaingit/pkg/blob"
	"chaingit/pkg/blob/disk"
	"chaingit/pkg/blob/ipfs"
	"chaingit/pkg/blob/s3"
	"chaingit/pkg/gitexec"
	"chaingit/pkg/ledger"
	"chaingit/pkg/ledger/cache"
	"chaingit/pkg/ledger/eth"
	"chaingit/pkg/meta"
	"chaingit/pkg/registry"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Registry *registry.Registry
	Factory  ledger.Factory
	Git      gitexec.Runner
	Blobs    blob.Store
	Repos    *meta.Repository
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 账本工厂: RPC 连接 + 签名账户 + 合约产物
	privateKey := viper.GetString("ledger.private_key")
	if privateKey == "" {
		return nil, fmt.Errorf("ledger private key not set (CG_LEDGER_PRIVATE_KEY)")
	}
	factory, err := eth.NewFactory(ctx, eth.Config{
		RPCURL:       viper.GetString("ledger.rpc_url"),
		PrivateKey:   privateKey,
		ArtifactPath: viper.GetString("ledger.artifact"),
		GasLimit:     viper.GetUint64("ledger.gas_limit"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init ledger factory: %w", err)
	}

	// 可选: 用 Redis 缓存对象存在性查询 (upload-pack 的 want 校验很热)
	var ledgerFactory ledger.Factory = factory
	if redisURL := viper.GetString("cache.redis_url"); redisURL != "" {
		ledgerFactory = &cachingFactory{
			inner: factory,
			cfg:   cache.Config{RedisURL: redisURL, TTL: time.Hour},
		}
	}

	// 2. Blob 存储后端 (Dependency Injection)
	blobs, err := newBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	// 3. git 可执行文件
	git, err := gitexec.New()
	if err != nil {
		return nil, err
	}

	// 4. 注册表持久化 + 重启恢复 (registry.db 为空 = 纯内存模式)
	reg := registry.New()
	var repos *meta.Repository
	if dbPath := viper.GetString("registry.db"); dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry db dir: %w", err)
		}
		db, err := meta.NewDB(dbPath)
		if err != nil {
			return nil, err
		}
		repos = meta.NewRepository(db)

		saved, err := repos.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, model := range saved {
			led, err := ledgerFactory.Attach(model.Address)
			if err != nil {
				// 地址坏了别拖死整个进程，跳过这一个仓库
				slog.Error("failed to attach ledger, skipping repo",
					slog.String("repo", model.Name),
					slog.String("address", model.Address),
					slog.String("err", err.Error()))
				continue
			}
			reg.InsertIfAbsent(model.Name, led)
		}
		if len(saved) > 0 {
			slog.Info("registry rehydrated", slog.Int("repos", len(saved)))
		}
	}

	return &App{
		Registry: reg,
		Factory:  ledgerFactory,
		Git:      git,
		Blobs:    blobs,
		Repos:    repos,
	}, nil
}

// newBlobStore 按 storage.type 选择后端
func newBlobStore(ctx context.Context) (blob.Store, error) {
	switch backend := viper.GetString("storage.type"); backend {
	case "ipfs":
		return ipfs.NewAdapter(ipfs.Config{
			APIURL:  viper.GetString("ipfs.api_url"),
			Gateway: viper.GetString("ipfs.gateway"),
		}), nil
	case "s3":
		if viper.GetString("s3.bucket") == "" {
			return nil, fmt.Errorf("s3 bucket is required (CG_S3_BUCKET)")
		}
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          viper.GetString("s3.bucket"),
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
		})
	case "disk":
		return disk.NewAdapter(viper.GetString("storage.path"))
	default:
		return nil, fmt.Errorf("unknown storage type: %q", backend)
	}
}

// cachingFactory 给工厂产出的每个账本句柄套上 Redis 缓存装饰器
type cachingFactory struct {
	inner ledger.Factory
	cfg   cache.Config
}

func (f *cachingFactory) Deploy(ctx context.Context) (ledger.Ledger, error) {
	led, err := f.inner.Deploy(ctx)
	if err != nil {
		return nil, err
	}
	return cache.NewCachedLedger(led, f.cfg)
}

func (f *cachingFactory) Attach(address string) (ledger.Ledger, error) {
	led, err := f.inner.Attach(address)
	if err != nil {
		return nil, err
	}
	return cache.NewCachedLedger(led, f.cfg)
}
