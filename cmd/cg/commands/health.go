package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := Daemon.HealthCheck(cmd.Context()); err != nil {
			return fmt.Errorf("daemon is not healthy: %w", err)
		}
		fmt.Printf("✅ Daemon at %s is healthy\n", viper.GetString("daemon.url"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
