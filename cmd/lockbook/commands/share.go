package commands

import (
	"encoding/base64"
	"fmt"

	"github.com/lockbook/lockbook-core/internal/cli/output"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/spf13/cobra"
)

var (
	shareRecipient string
	shareMode      string
)

var shareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Share a file with another account",
	Long: `Grant another account access to a file. --recipient takes the
base64-encoded public key printed by that account's 'whoami' (or the
recipient half of their exported account), --mode is read or write.`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func init() {
	shareCmd.Flags().StringVar(&shareRecipient, "recipient", "", "Recipient's base64-encoded public key")
	shareCmd.Flags().StringVar(&shareMode, "mode", "read", "Access mode: read|write")
	_ = shareCmd.MarkFlagRequired("recipient")
}

func runShare(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(shareRecipient)
	if err != nil {
		return fmt.Errorf("invalid --recipient: %w", err)
	}

	var mode lbmodel.AccessMode
	switch shareMode {
	case "read":
		mode = lbmodel.AccessRead
	case "write":
		mode = lbmodel.AccessWrite
	default:
		return fmt.Errorf("unknown --mode %q: expected read or write", shareMode)
	}

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

	if err := eng.ShareFile(ctx, id, lbmodel.Owner{PublicKey: pubKeyBytes}, mode); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	return nil
}

type pendingShareTable struct{ rows [][]string }

func (t pendingShareTable) Headers() []string { return []string{"SHARED ID", "FROM"} }
func (t pendingShareTable) Rows() [][]string  { return t.rows }

var pendingSharesCmd = &cobra.Command{
	Use:   "pending-shares",
	Short: "List shares granted to this account not yet accepted",
	RunE:  runPendingShares,
}

func runPendingShares(cmd *cobra.Command, args []string) error {
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

	shares, err := eng.PendingShares(ctx)
	if err != nil {
		return fmt.Errorf("pending shares: %w", err)
	}
	if len(shares) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending shares.")
		return nil
	}
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		from := base64.StdEncoding.EncodeToString(s.Signer.PublicKey)
		rows = append(rows, []string{s.Metadata.ID.String(), from})
	}
	output.PrintTable(cmd.OutOrStdout(), pendingShareTable{rows: rows})
	return nil
}

var acceptShareCmd = &cobra.Command{
	Use:   "accept-share <folder-id> <shared-id> <name>",
	Short: "Link a pending share into a folder under name",
	Args:  cobra.ExactArgs(3),
	RunE:  runAcceptShare,
}

func runAcceptShare(cmd *cobra.Command, args []string) error {
	folder, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	sharedID, err := parseFileID(args[1])
	if err != nil {
		return err
	}
	name := args[2]

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

	id, err := eng.AcceptShare(ctx, folder, sharedID, name)
	if err != nil {
		return fmt.Errorf("accept share: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id.String())
	return nil
}
