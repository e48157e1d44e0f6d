// Package commands implements the lockbook CLI's subcommands.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lockbook",
	Short: "Lockbook - end-to-end encrypted notes and files",
	Long: `lockbook is the command-line client for a Lockbook account: an
end-to-end encrypted file tree synced against a Lockbook server.

Use "lockbook [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		globalFlags.ConfigPath, _ = cmd.Flags().GetString("config")
		globalFlags.WritablePath, _ = cmd.Flags().GetString("writable-path")
		globalFlags.APIURL, _ = cmd.Flags().GetString("api-url")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().String("writable-path", "", "Override the configured data directory")
	rootCmd.PersistentFlags().String("api-url", "", "Override the configured Lockbook server URL")

	rootCmd.AddCommand(newAccountCmd)
	rootCmd.AddCommand(importAccountCmd)
	rootCmd.AddCommand(exportAccountCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(calculateWorkCmd)
	rootCmd.AddCommand(getUsageCmd)
	rootCmd.AddCommand(listMetadatasCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(writeDocumentCmd)
	rootCmd.AddCommand(readDocumentCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(pendingSharesCmd)
	rootCmd.AddCommand(acceptShareCmd)
}

// Exit prints an error to stderr and exits with status 1.
func Exit(err error) {
	rootCmd.PrintErrln("Error:", err)
	os.Exit(1)
}
