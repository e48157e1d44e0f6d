package commands

import (
	"encoding/base64"
	"fmt"

	"github.com/lockbook/lockbook-core/internal/cli/prompt"
	"github.com/lockbook/lockbook-core/pkg/config"
	"github.com/lockbook/lockbook-core/pkg/engine"
	"github.com/spf13/cobra"
)

var newAccountUsername string

var newAccountCmd = &cobra.Command{
	Use:   "new-account",
	Short: "Create a new Lockbook account",
	Long: `Generate a fresh identity key, register it with the configured
Lockbook server, and store it as this machine's account.

Examples:
  lockbook new-account --username alice
  lockbook new-account`,
	RunE: runNewAccount,
}

func init() {
	newAccountCmd.Flags().StringVarP(&newAccountUsername, "username", "u", "", "Username to register")
}

func runNewAccount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if hasAccount(cfg) {
		overwrite, err := prompt.Confirm(fmt.Sprintf("An account already exists at %s. Overwrite it", cfg.WritablePath), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("aborted")
		}
	}

	username := newAccountUsername
	if username == "" {
		username, err = prompt.InputRequired("Username")
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	base, err := config.CreateMetadataStore(cfg.MetadataStore, "base")
	if err != nil {
		return fmt.Errorf("open base metadata store: %w", err)
	}
	local, err := config.CreateMetadataStore(cfg.MetadataStore, "local")
	if err != nil {
		return fmt.Errorf("open local metadata store: %w", err)
	}
	blobs, err := config.CreateBlobStore(ctx, cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	cursor := engine.NewFileCursor(cursorFilePath(cfg))

	eng, err := engine.CreateAccount(ctx, username, cfg.APIURL, base, local, blobs, cursor)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	defer eng.Close()

	exported, err := eng.ExportAccount()
	if err != nil {
		return err
	}
	if err := saveAccountString(cfg, exported); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account '%s' created at %s\n", username, cfg.WritablePath)
	return nil
}

var importAccountCmd = &cobra.Command{
	Use:   "import-account",
	Short: "Import an account exported from another device",
	Long: `Restore an account from the string produced by 'export-account' on
another device. The account string is read from stdin if --account-string
is not given, so it never lands in shell history.

Examples:
  lockbook import-account --account-string "$(cat account.txt)"
  lockbook import-account`,
	RunE: runImportAccount,
}

var importAccountString string

func init() {
	importAccountCmd.Flags().StringVar(&importAccountString, "account-string", "", "Exported account string")
}

func runImportAccount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if hasAccount(cfg) {
		overwrite, err := prompt.Confirm(fmt.Sprintf("An account already exists at %s. Overwrite it", cfg.WritablePath), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("aborted")
		}
	}

	accountStr := importAccountString
	if accountStr == "" {
		accountStr, err = prompt.Secret("Account string")
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	base, err := config.CreateMetadataStore(cfg.MetadataStore, "base")
	if err != nil {
		return fmt.Errorf("open base metadata store: %w", err)
	}
	local, err := config.CreateMetadataStore(cfg.MetadataStore, "local")
	if err != nil {
		return fmt.Errorf("open local metadata store: %w", err)
	}
	blobs, err := config.CreateBlobStore(ctx, cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	cursor := engine.NewFileCursor(cursorFilePath(cfg))

	eng, err := engine.ImportAccount(accountStr, base, local, blobs, cursor)
	if err != nil {
		return fmt.Errorf("import account: %w", err)
	}
	defer eng.Close()

	if err := saveAccountString(cfg, accountStr); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account '%s' imported at %s. Run 'lockbook sync' to pull its files.\n", eng.Account().Username, cfg.WritablePath)
	return nil
}

var exportAccountCmd = &cobra.Command{
	Use:   "export-account",
	Short: "Print this machine's account string",
	Long: `Print the account string that 'import-account' can restore on
another device. Treat it like a password: anyone with it can read and
write every file in the account.`,
	RunE: runExportAccount,
}

func runExportAccount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := readAccountString(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print this account's username and public key",
	Long: `Print the username and base64-encoded public key of this machine's
account. Give the public key to someone else so they can 'lockbook share'
a file with you.`,
	RunE: runWhoami,
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	account := eng.Account()
	fmt.Fprintf(cmd.OutOrStdout(), "username: %s\npublic_key: %s\n",
		account.Username, base64.StdEncoding.EncodeToString(account.PublicKey().Bytes()))
	return nil
}
