package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	roleRepo    string
	roleAddress string
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage pusher/admin roles on a repository",
}

// newRoleCmd 生成一个授予/撤销子命令。
// 六个命令只有账本方法和文案不同，模板一份就够。
func newRoleCmd(use, short, verb string, call func(ctx context.Context, repo, address string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := call(cmd.Context(), roleRepo, roleAddress); err != nil {
				return err
			}
			fmt.Printf("✅ %s %s\n", verb, roleAddress)
			return nil
		},
	}
	return cmd
}

func newRoleCheckCmd(use, short, role string, call func(ctx context.Context, repo, address string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			has, err := call(cmd.Context(), roleRepo, roleAddress)
			if err != nil {
				return err
			}
			if has {
				fmt.Printf("✅ %s has %s role\n", roleAddress, role)
			} else {
				fmt.Printf("❌ %s does not have %s role\n", roleAddress, role)
			}
			return nil
		},
	}
}

func init() {
	roleCmd.PersistentFlags().StringVarP(&roleRepo, "repo", "r", "", "repository name")
	roleCmd.PersistentFlags().StringVarP(&roleAddress, "address", "a", "", "account address")
	roleCmd.MarkPersistentFlagRequired("repo")
	roleCmd.MarkPersistentFlagRequired("address")

	roleCmd.AddCommand(
		newRoleCmd("grant-pusher", "Grant pusher role to an address",
			"Pusher role granted to", func(ctx context.Context, repo, address string) error {
				return Daemon.GrantPusherRole(ctx, repo, address)
			}),
		newRoleCmd("revoke-pusher", "Revoke pusher role from an address",
			"Pusher role revoked from", func(ctx context.Context, repo, address string) error {
				return Daemon.RevokePusherRole(ctx, repo, address)
			}),
		newRoleCmd("grant-admin", "Grant admin role to an address",
			"Admin role granted to", func(ctx context.Context, repo, address string) error {
				return Daemon.GrantAdminRole(ctx, repo, address)
			}),
		newRoleCmd("revoke-admin", "Revoke admin role from an address",
			"Admin role revoked from", func(ctx context.Context, repo, address string) error {
				return Daemon.RevokeAdminRole(ctx, repo, address)
			}),
		newRoleCheckCmd("check-pusher", "Check if an address has pusher role",
			"pusher", func(ctx context.Context, repo, address string) (bool, error) {
				return Daemon.CheckPusherRole(ctx, repo, address)
			}),
		newRoleCheckCmd("check-admin", "Check if an address has admin role",
			"admin", func(ctx context.Context, repo, address string) (bool, error) {
				return Daemon.CheckAdminRole(ctx, repo, address)
			}),
	)

	repoCmd.AddCommand(roleCmd)
}
