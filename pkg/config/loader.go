package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ~/.chaingit
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(home, ".chaingit"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (CG_LEDGER_RPC_URL 等)
	viper.SetEnvPrefix("CG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错: 生产环境基本全靠环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Println("🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// 账本 (链上合约)
	viper.SetDefault("ledger.rpc_url", "http://localhost:8545")
	viper.SetDefault("ledger.artifact", "artifacts/RepositoryContract.json")
	viper.SetDefault("ledger.gas_limit", 4_000_000)

	// Blob 网络
	viper.SetDefault("ipfs.api_url", "http://127.0.0.1:5001")
	viper.SetDefault("ipfs.gateway", "")

	// 存储后端: ipfs | s3 | disk
	viper.SetDefault("storage.type", "ipfs")
	wd, _ := os.Getwd()
	viper.SetDefault("storage.path", filepath.Join(wd, ".chaingit", "objects"))

	// 注册表持久化 (SQLite)
	viper.SetDefault("registry.db", filepath.Join(wd, ".chaingit", "registry.db"))

	// 对象存在性缓存，空字符串 = 不启用
	viper.SetDefault("cache.redis_url", "")

	viper.SetDefault("server.port", 3000)

	// CLI 默认指向本机守护进程
	viper.SetDefault("daemon.url", "http://localhost:3000")
}
