package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lockbook/lockbook-core/internal/cli/output"
	"github.com/lockbook/lockbook-core/internal/cli/prompt"
	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/spf13/cobra"
)

func parseFileID(s string) (lbmodel.FileID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return lbmodel.FileID{}, fmt.Errorf("invalid file id %q: %w", s, err)
	}
	return id, nil
}

type fileInfoTable struct {
	rows [][]string
}

func (t fileInfoTable) Headers() []string { return []string{"ID", "TYPE", "NAME", "LAST MODIFIED"} }
func (t fileInfoTable) Rows() [][]string  { return t.rows }

var listMetadatasCmd = &cobra.Command{
	Use:   "list-metadatas",
	Short: "List every file visible to this account",
	RunE:  runListMetadatas,
}

func runListMetadatas(cmd *cobra.Command, args []string) error {
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

	files, err := eng.ListMetadatas(ctx)
	if err != nil {
		return fmt.Errorf("list metadatas: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No files.")
		return nil
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.ID.String(), f.Type.Tag.String(), f.Name, f.LastModified.Format("2006-01-02 15:04:05")})
	}
	output.PrintTable(cmd.OutOrStdout(), fileInfoTable{rows: rows})
	return nil
}

var createFileType string

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a document or folder at path",
	Long: `Create a new file at the given absolute path (e.g. /notes/todo.md),
creating any missing parent folders is NOT done implicitly: the parent
folder must already exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createFileType, "type", "document", "File type: document|folder")
}

func runCreate(cmd *cobra.Command, args []string) error {
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

	var kind lbmodel.FileType
	switch createFileType {
	case "document":
		kind = lbmodel.Document()
	case "folder":
		kind = lbmodel.Folder()
	default:
		return fmt.Errorf("unknown --type %q: expected document or folder", createFileType)
	}

	id, err := eng.CreateAtPath(ctx, args[0], kind)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id.String())
	return nil
}

var writeDocumentCmd = &cobra.Command{
	Use:   "write-document <id>",
	Short: "Write a document's contents from a file (or stdin with -)",
	Args:  cobra.ExactArgs(1),
	RunE:  runWriteDocument,
}

var writeDocumentInput string

func init() {
	writeDocumentCmd.Flags().StringVar(&writeDocumentInput, "input", "-", "Source file to read content from, or - for stdin")
}

func runWriteDocument(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var content []byte
	if writeDocumentInput == "-" {
		content, err = readAll(os.Stdin)
	} else {
		content, err = os.ReadFile(writeDocumentInput)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ctx := cmd.Context()
	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.WriteDocument(ctx, id, content); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

var readDocumentCmd = &cobra.Command{
	Use:   "read-document <id>",
	Short: "Print a document's contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runReadDocument,
}

func runReadDocument(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
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

	content, err := eng.ReadDocument(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(content)
	return err
}

var moveCmd = &cobra.Command{
	Use:   "move <id> <new-parent-id>",
	Short: "Move a file to a new parent folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	newParent, err := parseFileID(args[1])
	if err != nil {
		return err
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

	if err := eng.MoveFile(ctx, id, newParent); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <new-name>",
	Short: "Rename a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
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

	if err := eng.RenameFile(ctx, id, args[1]); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a file",
	Long: `Mark a file (and, for a folder, everything under it) deleted.
You will be prompted for confirmation unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s", id), deleteForce)
	if err != nil {
		return err
	}
	if !ok {
		return nil
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

	if err := eng.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
