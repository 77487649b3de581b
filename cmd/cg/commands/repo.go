package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories on the daemon",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new repository (deploys a ledger contract)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		fmt.Printf("Creating repository %q...\n", name)

		created, err := Daemon.CreateRepo(cmd.Context(), name)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Repository %q created\n", created.Repo)
		fmt.Printf("   Contract address: %s\n", created.Address)
		return nil
	},
}

func init() {
	repoCmd.AddCommand(repoCreateCmd)
	rootCmd.AddCommand(repoCmd)
}
