package commands

import (
	"fmt"
	"os"

	"chaingit/pkg/client"
	"chaingit/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局守护进程客户端，供子命令使用
	Daemon *client.DaemonClient
)

var rootCmd = &cobra.Command{
	Use:   "cg",
	Short: "ChainGit: Git hosting backed by a contract ledger",
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Daemon = client.New(viper.GetString("daemon.url"))
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chaingit/config.yaml)")

	// 2. 定义 daemon.url 参数，并绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用 --daemon-url 覆盖
	rootCmd.PersistentFlags().String("daemon-url", "", "Base URL of the chaingit daemon")
	err := viper.BindPFlag("daemon.url", rootCmd.PersistentFlags().Lookup("daemon-url"))
	if err != nil {
		fmt.Println("Failed to bind flag:", err)
		os.Exit(1)
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
